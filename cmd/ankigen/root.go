package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mivasi/ankigen"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// app carries the state shared by all subcommands, resolved once in the root
// command's PersistentPreRunE.
type app struct {
	cfgFile  string
	logLevel string

	cfg *ankigen.Config
	log *slog.Logger

	in  io.Reader
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{in: os.Stdin, out: os.Stdout}

	root := &cobra.Command{
		Use:   "ankigen",
		Short: "Generate Anki flashcards from tabular data with an LLM",
		Long: `ankigen renders a card template against each row of a tabular file,
asks an LLM for structured card content, validates and deduplicates the
results against your Anki collection, and writes or pushes the cards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ankigen.LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.log = newLogger(cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: per-user config dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newDecksCmd(a),
		newModelsCmd(a),
		newFieldsCmd(a),
		newExportCmd(a),
		newUpdateCmd(a),
		newGenerateCmd(a),
		newConfigCmd(a),
	)
	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) store() *ankigen.AnkiConnect {
	return ankigen.NewAnkiConnect(a.cfg.AnkiConnectURL, a.log)
}

// promptSelect asks the user to pick one entry from a numbered list.
func (a *app) promptSelect(what string, options []string) (string, error) {
	fmt.Fprintln(a.out, headingStyle.Render("Select "+what+":"))
	for i, opt := range options {
		fmt.Fprintf(a.out, "  %2d) %s\n", i+1, opt)
	}

	reader := bufio.NewReader(a.in)
	for {
		fmt.Fprintf(a.out, "%s [1-%d]: ", what, len(options))
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read selection: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintln(a.out, warnStyle.Render("enter a number from the list"))
			continue
		}
		return options[n-1], nil
	}
}

// promptYesNo asks a yes/no question; empty input means the default.
func (a *app) promptYesNo(question string, def bool) (bool, error) {
	hint := "[Y/n]"
	if !def {
		hint = "[y/N]"
	}
	reader := bufio.NewReader(a.in)
	for {
		fmt.Fprintf(a.out, "%s %s ", question, hint)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(a.out, warnStyle.Render("answer y or n"))
		}
	}
}
