package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mivasi/ankigen"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change tool configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, entry := range a.cfg.ConfigEntries() {
				fmt.Fprintf(a.out, "%s = %s\n", dimStyle.Render(entry[0]), entry[1])
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist one config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := ankigen.SetConfigValue(a.cfgFile, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("set %s", args[0])))
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
