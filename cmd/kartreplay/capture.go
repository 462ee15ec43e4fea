package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/scenario"
	"github.com/spf13/pflag"
)

func captureCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var frames uint32
	fs := pflag.NewFlagSet("capture", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Uint32VarP(&frames, "frames", "n", 0, "frames to simulate, 0 runs through the inputs")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "capture needs a scenario and an output path.")
		usage(stderr)
		return exitError
	}
	in, out := fs.Arg(0), fs.Arg(1)

	sc, err := scenario.Load(in)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if frames != 0 {
		sc.Frames = frames
	}

	logPath, n, err := capture(ctx, sc, out)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", in, err)
		return exitError
	}
	fmt.Fprintf(stdout, "Captured %d frames to %s\n", n, logPath)
	return exitOK
}

// referenceLogPath is the reference log written next to the scenario out.
func referenceLogPath(out string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(out, ".gz"), ".json")
	return base + ".rkrd"
}

// capture simulates sc without a reference and saves it to out with the
// produced frames as its reference log. Ghost inputs are stored inline so the
// saved scenario does not depend on files next to the original.
func capture(ctx context.Context, sc *scenario.Scenario, out string) (string, int, error) {
	sc.Reference = nil
	sc.ReferenceLog = ""

	g, _, err := sc.NewGame()
	if err != nil {
		return "", 0, err
	}

	frames := sc.FrameCount()
	refs := make([]replay.ReferenceFrame, 0, frames)
	_, err = replay.Run(ctx, g, frames, func(fr replay.FrameResult) error {
		refs = append(refs, replay.Capture(fr.Players[0]))
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	logPath := referenceLogPath(out)
	f, err := os.Create(logPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create reference log: %w", err)
	}
	if err := replay.WriteReferenceLog(f, refs); err != nil {
		f.Close()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, err
	}

	sc.Vehicle.Name = sc.VehicleName()
	sc.GhostFile = ""
	sc.ReferenceLog = filepath.Base(logPath)
	if err := sc.Save(out); err != nil {
		return "", 0, fmt.Errorf("failed to save scenario: %w", err)
	}
	return logPath, len(refs), nil
}
