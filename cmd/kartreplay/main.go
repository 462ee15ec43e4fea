package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ToolName string = "kartreplay"
)

// exit codes
const (
	exitOK     = 0
	exitDesync = 1
	exitError  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  %[1]s run [--config dir] [--start x,y,z] [--frames n] [--stop-on-desync] <scenario>...
  %[1]s capture [--frames n] <scenario> <out>
  %[1]s inspect [--obj file] <scenario>...
  %[1]s version
`, ToolName)
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "No arguments provided.")
		usage(stderr)
		return exitError
	}

	switch strings.ToLower(args[0]) {
	case "run":
		return runCommand(ctx, args[1:], stdout, stderr)
	case "capture":
		return captureCommand(ctx, args[1:], stdout, stderr)
	case "inspect":
		return inspectCommand(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s (built %s)\n", ToolName, CurrentVersion, BuildDate)
		return exitOK
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n", args[0])
		usage(stderr)
		return exitError
	}
}
