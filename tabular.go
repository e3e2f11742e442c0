package ankigen

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Tabular files hold ordered flat records in one of two encodings, selected
// by extension: comma-delimited (.csv) and block markup (.md, "key: value"
// lines with records separated by --- lines). Values are stored with \r
// stripped and newlines encoded as <br>, the store's field convention.

type tableFormat int

const (
	formatCSV tableFormat = iota
	formatMarkdown
)

func detectFormat(path string) (tableFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV, nil
	case ".md":
		return formatMarkdown, nil
	default:
		return 0, fmt.Errorf("unsupported table format %q (want .csv or .md)", filepath.Ext(path))
	}
}

func encodeValue(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func decodeValue(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "<br>", "\n")
}

// guardTextFile rejects binary input before parsing; extension alone is not
// trusted.
func guardTextFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect type of %s: %w", path, err)
	}
	if !strings.HasPrefix(mtype.String(), "text/") {
		return fmt.Errorf("%s: not a text file (detected %s)", path, mtype.String())
	}
	return nil
}

// ReadTable reads all records from a tabular file. The header preserves
// column order; record order is preserved.
func ReadTable(path string) ([]string, []Row, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTextFile(path); err != nil {
		return nil, nil, err
	}
	switch format {
	case formatCSV:
		return readCSV(path)
	default:
		return readMarkdown(path)
	}
}

// WriteTable writes records to path, replacing any existing content.
func WriteTable(path string, header []string, rows []Row) error {
	format, err := detectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case formatCSV:
		return writeCSV(path, header, rows)
	default:
		return writeMarkdown(path, header, rows)
	}
}

// AppendTable appends records to an existing file, or creates it. The new
// records' key set must exactly equal the existing header's key set;
// otherwise the append fails with HeaderMismatchError and the file is left
// untouched.
func AppendTable(path string, header []string, rows []Row) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return WriteTable(path, header, rows)
	}

	existingHeader, existing, err := ReadTable(path)
	if err != nil {
		return err
	}
	if !sameKeySet(existingHeader, header) {
		return &HeaderMismatchError{Path: path, Have: existingHeader, Want: header}
	}

	// Existing column order wins; new records are re-keyed onto it.
	return WriteTable(path, existingHeader, append(existing, rows...))
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func readCSV(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: missing header row", path)
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(header) {
			return nil, nil, fmt.Errorf("%s: record has %d fields, header has %d", path, len(record), len(header))
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = decodeValue(record[i])
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func writeCSV(path string, header []string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = encodeValue(row[col])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// recordSeparator divides records in the block markup encoding.
const recordSeparator = "---"

func readMarkdown(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var (
		header  []string
		rows    []Row
		current Row
		order   []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if header == nil {
			header = order
		}
		rows = append(rows, current)
		current = nil
		order = nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == recordSeparator {
			flush()
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, nil, fmt.Errorf("%s: malformed record line %q", path, line)
		}
		key = strings.TrimSpace(key)
		if current == nil {
			current = make(Row)
		}
		if _, dup := current[key]; dup {
			return nil, nil, fmt.Errorf("%s: duplicate key %q in record", path, key)
		}
		current[key] = decodeValue(strings.TrimSpace(value))
		order = append(order, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	flush()

	if header == nil {
		return nil, nil, fmt.Errorf("%s: no records found", path)
	}
	return header, rows, nil
}

func writeMarkdown(path string, header []string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w, recordSeparator)
		}
		for _, col := range header {
			fmt.Fprintf(w, "%s: %s\n", col, encodeValue(row[col]))
		}
	}
	return w.Flush()
}
