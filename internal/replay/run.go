package replay

import (
	"context"
	"fmt"

	"github.com/OCAP2/kartreplay/internal/player"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/kartreplay/internal/replay"

// FrameResult is the settled state after one simulated frame. Players alias the
// live game state and are only valid until the next frame is simulated.
type FrameResult struct {
	Index   uint32
	Stage   player.Stage
	Players []*player.Player
	// Desync holds the differing fields when this frame is the first desync.
	Desync []string
}

// Observer receives every settled frame. Returning an error stops the run.
type Observer func(FrameResult) error

// Result summarizes a finished run.
type Result struct {
	Frames       uint32
	DesyncFrame  uint32
	DesyncFields []string
}

// InSync reports whether no frame differed from the reference.
func (r Result) InSync() bool {
	return r.DesyncFrame == NoDesync
}

// Run simulates frames frames of g, handing each one to observe (which may be
// nil). The context is checked between frames only.
func Run(ctx context.Context, g *Game, frames uint32, observe Observer) (Result, error) {
	m := otel.Meter(instrumentationName)
	simulated, err := m.Int64Counter("replay.frames.simulated",
		metric.WithDescription("Frames simulated"),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create simulated counter: %w", err)
	}
	desynced, err := m.Int64Counter("replay.desync.frames",
		metric.WithDescription("Frames that first diverged from the reference log"),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create desync counter: %w", err)
	}

	var done uint32
	for ; done < frames; done++ {
		if err := ctx.Err(); err != nil {
			return g.result(done), fmt.Errorf("run stopped at frame %d: %w", g.Frame(), err)
		}

		idx, stage := g.Frame(), g.Stage()
		diff := g.Simulate()
		simulated.Add(ctx, 1)
		if diff != nil {
			desynced.Add(ctx, 1, metric.WithAttributes(attribute.String("field", diff[0])))
		}

		if observe == nil {
			continue
		}
		res := FrameResult{Index: idx, Stage: stage, Players: g.Players(), Desync: diff}
		if err := observe(res); err != nil {
			return g.result(done + 1), fmt.Errorf("observer at frame %d: %w", idx, err)
		}
	}

	return g.result(done), nil
}

func (g *Game) result(frames uint32) Result {
	return Result{
		Frames:       frames,
		DesyncFrame:  g.desyncFrame,
		DesyncFields: g.desyncFields,
	}
}
