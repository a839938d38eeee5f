// Package pipeline parses and runs the batch commands that build the tables
// served by the API.
package pipeline

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// ErrUsage marks an invalid command line.
var ErrUsage = errors.New("usage error")

// Parse reads "<command> [flags]".
func Parse(args []string, out io.Writer) (*Options, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", ErrUsage)
	}
	opts := &Options{Command: args[0]}
	switch opts.Command {
	case CommandTransform, CommandNormalize, CommandConvert, CommandLocate, CommandCollect:
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, opts.Command)
	}

	fs := flag.NewFlagSet(opts.Command, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.Input, "in", "", "Input file (default from configuration)")
	fs.StringVar(&opts.Output, "out", "", "Output file (default from configuration)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
	if opts.Command == CommandCollect {
		fs.IntVar(&opts.Workers, "workers", 0, "Concurrent stations (default worker_count)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative", ErrUsage)
	}
	return opts, nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `metroflow pipeline
==================

Builds the station, flow and POI tables served by the API.

Usage:
  pipeline <command> [-in file] [-out file] [-verbose]

Commands:
  transform   raw JSON-lines export (raw_file) -> transaction table (transactions_file)
  normalize   transaction table -> normalized table (normalized_file)
  locate      normalized table -> GCJ-02 station table (stations_gcj02_file); needs amap_key
  convert     GCJ-02 station table -> WGS-84 station table (stations_file)
  collect     GCJ-02 station table -> station type and POI tables; needs amap_key
              -workers n   concurrent stations (default worker_count)

Configuration is read from METROFLOW_CONFIG (YAML), .env and METROFLOW_* variables.
Collection resumes where it stopped: stations already in both output tables are skipped.
`)
}
