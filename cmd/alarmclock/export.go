// Package main is the entry point for alarmclock.
// This file contains the export subcommand handler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"alarmclock/internal/fsutil"
	"alarmclock/internal/reports"
)

// exportHelpText is the help message for the export subcommand.
const exportHelpText = `alarmclock export - Write the alarm schedule

USAGE:
    alarmclock export [OPTIONS]

OPTIONS:
    -f, --format FMT   Output format: markdown (default) or json
    -o, --output FILE  Write to file instead of stdout
    -h, --help         Show this help message

EXAMPLES:
    # Schedule as Markdown
    alarmclock export

    # JSON to a file
    alarmclock export --format json --output alarms.json
`

// runExport handles the "alarmclock export" subcommand.
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	formatFlag := fs.String("format", "markdown", "output format: markdown or json")
	fs.StringVar(formatFlag, "f", "markdown", "output format (shorthand)")

	outputFlag := fs.String("output", "", "write to file instead of stdout")
	fs.StringVar(outputFlag, "o", "", "write to file (shorthand)")

	helpFlag := fs.Bool("help", false, "show help message")
	fs.BoolVar(helpFlag, "h", false, "show help message (shorthand)")

	parseOrExit(fs, args, helpFlag, exportHelpText)

	format := *formatFlag
	switch format {
	case "markdown", "json":
	case "md":
		format = "markdown"
	default:
		fatalf("invalid format %q. Use 'markdown' or 'json'.", format)
	}

	cfg := loadConfig()
	ctx := context.Background()
	reg, closeStore := openRegistry(ctx, cfg)
	report, err := reports.NewGenerator(reg, nil).Generate(ctx)
	closeStore()
	if err != nil {
		fatalf("generating report: %v", err)
	}

	var output string
	if format == "json" {
		data, err := reports.FormatJSON(report)
		if err != nil {
			fatalf("formatting JSON: %v", err)
		}
		output = string(data) + "\n"
	} else {
		output = reports.FormatMarkdown(report)
	}

	if *outputFlag == "" {
		fmt.Print(output)
		return
	}
	// WriteFileAtomic creates the parent directory.
	if err := fsutil.WriteFileAtomic(*outputFlag, []byte(output), fsutil.FilePerm); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schedule written to %s\n", *outputFlag)
}
