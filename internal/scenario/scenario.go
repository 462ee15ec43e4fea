// Package scenario loads a replay scenario: decoded course geometry, vehicle
// parameters and geometry, the start point, the recorded inputs and the reference
// frames, bundled as plain or gzip-compressed JSON.
package scenario

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
	"github.com/OCAP2/kartreplay/internal/player"
	"github.com/OCAP2/kartreplay/internal/replay"
	"github.com/OCAP2/kartreplay/internal/vehicle"
)

// ErrNoInputs is returned for a scenario with neither inputs nor a ghost file.
var ErrNoInputs = errors.New("scenario has no inputs")

// Scenario is one replay to simulate.
type Scenario struct {
	Name    string     `json:"name"`
	Course  Course     `json:"course"`
	Vehicle Vehicle    `json:"vehicle"`
	Start   mathf.Vec3 `json:"start"`

	// Inputs start at the first countdown frame. GhostFile, relative to the
	// scenario, replaces them with the inputs of an uncompressed ghost.
	Inputs    []player.Input `json:"inputs,omitempty"`
	GhostFile string         `json:"ghostFile,omitempty"`

	// Reference frames, inline or as a reference log file relative to the
	// scenario.
	Reference    []replay.ReferenceFrame `json:"reference,omitempty"`
	ReferenceLog string                  `json:"referenceLog,omitempty"`

	// Frames to simulate. Zero runs to the end of the inputs.
	Frames uint32 `json:"frames,omitempty"`

	Ghost *replay.GhostHeader `json:"-"`
}

// Vehicle is the kart and driver parameter blocks with the vehicle geometry.
type Vehicle struct {
	Name   string         `json:"name"`
	Kart   vehicle.Params `json:"kart"`
	Driver vehicle.Params `json:"driver"`
	Bsp    vehicle.Bsp    `json:"bsp"`
	Handle *Handle        `json:"handle,omitempty"`
}

// Handle is a bike handle with its angles in degrees.
type Handle struct {
	Pos    mathf.Vec3 `json:"pos"`
	Angles mathf.Vec3 `json:"angles"`
}

// Stats returns the merged kart and driver parameters.
func (v *Vehicle) Stats() vehicle.Params {
	return vehicle.Merge(v.Kart, v.Driver)
}

// Load reads a scenario file and the ghost and reference log files it refers to.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := s.resolve(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode reads a scenario, transparently decompressing gzip input.
func Decode(r io.Reader) (*Scenario, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(2)

	var src io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var s Scenario
	if err := json.NewDecoder(src).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) resolve(dir string) error {
	if s.GhostFile != "" {
		data, err := os.ReadFile(filepath.Join(dir, s.GhostFile))
		if err != nil {
			return fmt.Errorf("failed to read ghost: %w", err)
		}
		g, err := replay.DecodeGhost(data)
		if err != nil {
			return fmt.Errorf("ghost %s: %w", s.GhostFile, err)
		}
		s.Inputs = g.Inputs
		s.Ghost = &g.Header
	}

	if s.ReferenceLog != "" {
		f, err := os.Open(filepath.Join(dir, s.ReferenceLog))
		if err != nil {
			return fmt.Errorf("failed to open reference log: %w", err)
		}
		defer f.Close()

		frames, err := replay.ReadReferenceLog(f)
		if err != nil {
			return fmt.Errorf("reference log %s: %w", s.ReferenceLog, err)
		}
		s.Reference = frames
	}

	return nil
}

// Save writes the scenario as JSON, gzip-compressed when the path ends in ".gz".
func (s *Scenario) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".gz") {
		return json.NewEncoder(f).Encode(s)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(s); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// FrameCount is the number of frames to simulate: Frames when set, otherwise
// through the last input frame.
func (s *Scenario) FrameCount() uint32 {
	if s.Frames != 0 {
		return s.Frames
	}
	return uint32(player.FrameCountdown + len(s.Inputs))
}

// VehicleName is the catalogue name of the vehicle, falling back to the ghost's
// vehicle id.
func (s *Scenario) VehicleName() string {
	if s.Vehicle.Name != "" {
		return s.Vehicle.Name
	}
	if s.Ghost != nil {
		return vehicle.Name(s.Ghost.VehicleID)
	}
	return ""
}

// NewPlayer places the scenario vehicle on w.
func (s *Scenario) NewPlayer(w *kcl.World) (*player.Player, error) {
	var handle *vehicle.Handle
	if h := s.Vehicle.Handle; h != nil {
		v := vehicle.HandleFromDegrees(h.Pos, h.Angles)
		handle = &v
	}

	bsp := s.Vehicle.Bsp
	return player.Place(w, s.Vehicle.Stats(), &bsp, handle, s.Start)
}

// NewGame builds the world and the player and returns a game ready to run.
func (s *Scenario) NewGame() (*replay.Game, *kcl.World, error) {
	if len(s.Inputs) == 0 && s.Frames == 0 {
		return nil, nil, ErrNoInputs
	}

	w, err := s.Course.World()
	if err != nil {
		return nil, nil, fmt.Errorf("course %q: %w", s.Course.Name, err)
	}

	p, err := s.NewPlayer(w)
	if err != nil {
		return nil, nil, err
	}

	g := replay.NewGame(s.Reference)
	g.AddPlayer(p, s.Inputs)
	return g, w, nil
}
