package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/reoring/esml"
	"github.com/reoring/esml/i18n"
	"github.com/reoring/esml/projector/properties"
	"github.com/reoring/esml/source"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	sub := os.Args[1]
	switch sub {
	case "validate":
		validateCmd(os.Args[2:])
	case "project-properties":
		projectPropertiesCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `esml validates self-describing event logs.

Usage:
  esml validate [--summary] [--jsonl] [--format json|yaml|auto] [--log-level level] [--lang en|ja] <file>
  esml project-properties [--config-id id] <file>

Exit codes:
  0  every record accepted
  1  usage error
  2  pass aborted or one or more records rejected`)
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	summary := fs.Bool("summary", false, "print the pass summary after validating")
	jsonl := fs.Bool("jsonl", false, "emit the report as JSON lines instead of text")
	format := fs.String("format", "auto", "input format: json, yaml or auto (by file extension)")
	logLevel := fs.String("log-level", "warn", "log level (trace..disabled)")
	lang := fs.String("lang", "en", "message language (en/ja)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	logger := newLogger(*logLevel)
	i18n.SetLanguage(*lang)

	src, err := openSource(path, *format)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("cannot open input")
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	rep, err := esml.ValidateSource(context.Background(), src, esml.ValidateOpt{Logger: &logger})
	if err != nil {
		// fatal: the pass aborted with no report
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	if *jsonl {
		if err := rep.WriteJSONL(os.Stdout); err != nil {
			logger.Error().Err(err).Msg("writing report")
			os.Exit(2)
		}
	} else {
		if rep.Rejected == 0 {
			fmt.Println("OK")
		} else {
			for _, res := range rep.Results {
				if res.Accepted {
					continue
				}
				detail := ""
				if len(res.Issues) > 0 {
					detail = res.Issues.Error()
				}
				fmt.Printf("record %d rejected (%s): %s\n", res.Index, res.ErrorKind, detail)
			}
		}
		if *summary {
			fmt.Println()
			fmt.Println(rep.Summary())
		}
	}
	if rep.Rejected > 0 {
		os.Exit(2)
	}
}

func projectPropertiesCmd(args []string) {
	fs := flag.NewFlagSet("project-properties", flag.ExitOnError)
	configID := fs.String("config-id", "", "only project events for this config_id")
	format := fs.String("format", "auto", "input format: json, yaml or auto (by file extension)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	src, err := openSource(path, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
	proj, err := properties.Project(src, *configID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
	if _, err := proj.WriteTo(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}
}

func openSource(path, format string) (source.RecordSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "json"
		}
	}
	switch format {
	case "json":
		return source.JSONBytes(data), nil
	case "yaml":
		return source.YAMLBytes(data), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
