// Package replay drives players through race frames from recorded inputs and checks
// the simulated state against a reference log.
package replay

import (
	"github.com/OCAP2/kartreplay/internal/player"
)

// NoDesync is the desync frame of a game that is still in sync.
const NoDesync = ^uint32(0)

type driven struct {
	p      *player.Player
	inputs []player.Input
	in     player.Input
	last   player.Input
}

// Game steps a set of players one frame at a time. Player 0 is the one checked
// against the reference log.
type Game struct {
	players   []*driven
	reference []ReferenceFrame
	frame     uint32

	desyncFrame  uint32
	desyncFields []string
}

// NewGame creates a game. reference may be empty, in which case no frame is ever
// compared.
func NewGame(reference []ReferenceFrame) *Game {
	return &Game{
		reference:   reference,
		desyncFrame: NoDesync,
	}
}

// AddPlayer appends a player fed by the given per-frame inputs. inputs[0] is
// applied on the first countdown frame. It returns the player's index.
func (g *Game) AddPlayer(p *player.Player, inputs []player.Input) int {
	g.players = append(g.players, &driven{p: p, inputs: inputs})
	return len(g.players) - 1
}

// Players returns the players in update order.
func (g *Game) Players() []*player.Player {
	out := make([]*player.Player, len(g.players))
	for i, d := range g.players {
		out[i] = d.p
	}
	return out
}

// Player returns the player at index i.
func (g *Game) Player(i int) *player.Player {
	return g.players[i].p
}

// Frame returns the index of the next frame to simulate.
func (g *Game) Frame() uint32 {
	return g.frame
}

// Stage returns the stage of the next frame to simulate.
func (g *Game) Stage() player.Stage {
	return player.StageAt(g.frame)
}

// Reference returns the reference log the game compares against.
func (g *Game) Reference() []ReferenceFrame {
	return g.reference
}

// Desync returns the first frame whose state differed from the reference.
func (g *Game) Desync() (uint32, bool) {
	return g.desyncFrame, g.desyncFrame != NoDesync
}

// DesyncFields returns the fields that differed on the desync frame.
func (g *Game) DesyncFields() []string {
	return g.desyncFields
}

// InputAt returns the input applied on a frame from a recorded stream. Frames
// before the countdown and past the end of the stream are neutral.
func InputAt(inputs []player.Input, frame uint32) player.Input {
	if frame < player.FrameCountdown {
		return player.Input{}
	}
	idx := uint64(frame) - player.FrameCountdown
	if idx >= uint64(len(inputs)) {
		return player.Input{}
	}
	return inputs[idx]
}

// Simulate advances every player by one frame. Once player 0 has been updated the
// frame is compared with the reference; only the first differing frame is kept and
// simulation continues past it. It returns the fields that differed when this frame
// is the first desync, nil otherwise.
func (g *Game) Simulate() []string {
	stage := player.StageAt(g.frame)

	for _, d := range g.players {
		d.last = d.in
		d.in = InputAt(d.inputs, g.frame)
		d.p.Update(&d.in, &d.last, stage, g.frame)
	}

	prev := g.frame
	g.frame++

	if len(g.players) == 0 || g.desyncFrame != NoDesync || uint64(prev) >= uint64(len(g.reference)) {
		return nil
	}

	diff := Compare(&g.players[0].p.Physics, &g.reference[prev])
	if len(diff) == 0 {
		return nil
	}
	g.desyncFrame = prev
	g.desyncFields = diff
	return diff
}
