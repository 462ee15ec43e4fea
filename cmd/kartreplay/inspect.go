package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/OCAP2/kartreplay/internal/scenario"
	"github.com/spf13/pflag"
)

func inspectCommand(args []string, stdout, stderr io.Writer) int {
	var objPath string
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&objPath, "obj", "", "write the course mesh as Wavefront OBJ")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	paths, err := expandScenarios(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "No scenarios provided.")
		return exitError
	}
	if objPath != "" && len(paths) != 1 {
		fmt.Fprintln(stderr, "--obj needs exactly one scenario.")
		return exitError
	}

	code := exitOK
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err == nil {
			err = inspect(stdout, path, sc)
		}
		if err == nil && objPath != "" {
			err = writeOBJ(objPath, sc)
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			code = exitError
		}
	}
	return code
}

// inspect prints the course, vehicle and input summary of a scenario.
func inspect(w io.Writer, path string, sc *scenario.Scenario) error {
	world, err := sc.Course.World()
	if err != nil {
		return fmt.Errorf("course %q: %w", sc.Course.Name, err)
	}

	octree := "built"
	if sc.Course.Octree != nil {
		octree = "precomputed"
	}
	stats := sc.Vehicle.Stats()
	kind := "kart"
	if stats.IsBike() {
		kind = "bike"
	}
	h := world.Header

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Scenario:\t%s (%s)\n", sc.Name, path)
	fmt.Fprintf(tw, "Course:\t%s\n", sc.Course.Name)
	fmt.Fprintf(tw, "Triangles:\t%d\n", len(world.Tris))
	fmt.Fprintf(tw, "Octree:\t%s, %d roots, %d branches, %d leaves\n",
		octree, len(world.Octree.RootNodes), len(world.Octree.Branches), len(world.Octree.TriLists))
	fmt.Fprintf(tw, "Origin:\t%g,%g,%g (shift %d)\n", h.Origin[0], h.Origin[1], h.Origin[2], h.Shift)
	fmt.Fprintf(tw, "Vehicle:\t%s (%s)\n", sc.VehicleName(), kind)
	fmt.Fprintf(tw, "Weight:\t%g\n", stats.Weight)
	fmt.Fprintf(tw, "Start:\t%g,%g,%g\n", sc.Start[0], sc.Start[1], sc.Start[2])
	fmt.Fprintf(tw, "Inputs:\t%d\n", len(sc.Inputs))
	fmt.Fprintf(tw, "Frames:\t%d\n", sc.FrameCount())
	fmt.Fprintf(tw, "Reference frames:\t%d\n", len(sc.Reference))
	if g := sc.Ghost; g != nil {
		fmt.Fprintf(tw, "Ghost:\t%s, %d laps, drift type %d\n", g.FinishTime, g.LapCount, g.DriftType)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

// writeOBJ dumps the course mesh of sc to path.
func writeOBJ(path string, sc *scenario.Scenario) error {
	world, err := sc.Course.World()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create obj file: %w", err)
	}
	if err := world.WriteOBJ(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write obj file: %w", err)
	}
	return f.Close()
}
