// Package repository reads and writes the pipeline's CSV tables and loads
// the immutable snapshot served by the API.
package repository

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const utf8BOM = "\ufeff"

// column names a logical field and the header spellings accepted for it.
// Older tables use the Chinese headers.
type column struct {
	name    string
	aliases []string
}

func col(name string, aliases ...string) column {
	return column{name: name, aliases: aliases}
}

// header maps logical column names to record positions.
type header map[string]int

func newHeader(row []string, cols []column, required ...string) (header, error) {
	pos := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	hd := make(header, len(cols))
	for _, c := range cols {
		for _, name := range append([]string{c.name}, c.aliases...) {
			if i, ok := pos[name]; ok {
				hd[c.name] = i
				break
			}
		}
	}
	for _, name := range required {
		if _, ok := hd[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return hd, nil
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func (h header) has(name string) bool {
	_, ok := h[name]
	return ok
}

// scanTable opens path and calls fn for every data row. A missing file is
// reported as os.ErrNotExist.
func scanTable(path string, cols []column, required []string, fn func(h header, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedTable, path, err)
	}
	h, err := newHeader(first, cols, required...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedTable, path, err)
		}
		if err := fn(h, rec); err != nil {
			return err
		}
	}
}

// TableWriter writes a CSV table to a temporary file that replaces the
// target only on Commit, so readers never see a partial table.
type TableWriter struct {
	path string
	tmp  *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	done bool
}

// NewTableWriter starts a table at path with the given header row.
func NewTableWriter(path string, headerRow []string) (*TableWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", path, err)
	}
	buf := bufio.NewWriter(tmp)
	w := &TableWriter{path: path, tmp: tmp, buf: buf, csv: csv.NewWriter(buf)}
	if err := w.Write(headerRow); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

// Write appends one row.
func (w *TableWriter) Write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

// Commit flushes, syncs and atomically renames the table into place.
func (w *TableWriter) Commit() error {
	if w.done {
		return nil
	}
	w.csv.Flush()
	err := w.csv.Error()
	if err == nil {
		err = w.buf.Flush()
	}
	if err == nil {
		err = w.tmp.Sync()
	}
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(w.tmp.Name(), w.path)
	}
	w.done = true
	if err != nil {
		_ = os.Remove(w.tmp.Name())
		return fmt.Errorf("commit %s: %w", w.path, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (w *TableWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
}

// writeTable writes all rows atomically.
func writeTable(path string, headerRow []string, rows [][]string) error {
	w, err := NewTableWriter(path, headerRow)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Commit()
}
