// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. The SQLite and Postgres
// backends share it.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/kartreplay/internal/database"
	"github.com/OCAP2/kartreplay/internal/model"
	"github.com/OCAP2/kartreplay/internal/model/convert"
	"github.com/OCAP2/kartreplay/internal/queue"
	"github.com/OCAP2/kartreplay/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

const defaultFlushInterval = 500 * time.Millisecond

// writeBatchSize keeps frame state inserts under the SQLite bound parameter limit.
const writeBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB *gorm.DB
	// Connect opens the database on Init when DB is nil.
	Connect       func() (*gorm.DB, error)
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	FrameStates *queue.Queue[model.FrameState]
	Desyncs     *queue.Queue[model.Desync]
}

func newQueues() *queues {
	return &queues{
		FrameStates: queue.New[model.FrameState](),
		Desyncs:     queue.New[model.Desync](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	runID    atomic.Uint64
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	run        *model.Run
	trajectory []core.Position3D
	hasDesync  bool

	flushMu sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the database, nil before Init in connect mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// Without a DB or a Connect function the backend only queues.
func (b *Backend) Init() error {
	b.queues = newQueues()

	if b.deps.DB == nil && b.deps.Connect != nil {
		db, err := b.deps.Connect()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		b.deps.DB = db
	}

	if b.deps.DB != nil {
		if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and writes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return b.Flush()
}

// StartRun inserts the run row and assigns its ID.
func (b *Backend) StartRun(r *core.Run) error {
	m := convert.CoreToRun(*r)
	if b.deps.DB != nil {
		b.flushMu.Lock()
		err := b.deps.DB.Create(&m).Error
		b.flushMu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to insert new run: %w", err)
		}
		r.ID = m.ID
	} else {
		m.ID = uint(b.runID.Load()) + 1
		r.ID = m.ID
	}

	b.mu.Lock()
	b.run = &m
	b.trajectory = nil
	b.hasDesync = false
	b.mu.Unlock()

	b.runID.Store(uint64(m.ID))
	b.deps.Logger.Info().Uint("run", m.ID).Str("course", r.Course).Str("vehicle", r.Vehicle).Msg("Run started")
	return nil
}

// RecordFrame converts and queues a frame state.
func (b *Backend) RecordFrame(s *core.FrameState) error {
	b.mu.Lock()
	if b.run == nil {
		b.mu.Unlock()
		return core.ErrNoRun
	}
	b.trajectory = append(b.trajectory, s.Position)
	runID := b.run.ID
	b.mu.Unlock()

	b.queues.FrameStates.Push(convert.CoreToFrameState(*s, runID))
	return nil
}

// RecordDesync converts and queues the first desync of the run.
func (b *Backend) RecordDesync(d *core.Desync) error {
	b.mu.Lock()
	if b.run == nil {
		b.mu.Unlock()
		return core.ErrNoRun
	}
	first := !b.hasDesync
	b.hasDesync = true
	runID := b.run.ID
	b.mu.Unlock()

	if first {
		b.queues.Desyncs.Push(convert.CoreToDesync(*d, runID))
	}
	return nil
}

// EndRun writes the queues and stores the result and trajectory on the run row.
func (b *Backend) EndRun(res *core.RunResult) error {
	b.mu.Lock()
	run := b.run
	trajectory := b.trajectory
	b.run = nil
	b.trajectory = nil
	b.mu.Unlock()

	if run == nil {
		return core.ErrNoRun
	}

	convert.ApplyResult(run, *res, trajectory)
	if b.deps.DB != nil && b.queues != nil {
		b.flushMu.Lock()
		err := b.flushLocked()
		if err == nil {
			err = b.deps.DB.Save(run).Error
		}
		b.flushMu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}

	b.deps.Logger.Info().
		Uint("run", run.ID).
		Uint32("frames", run.Frames).
		Bool("inSync", run.InSync).
		Float64("trajectoryLength", run.TrajectoryLength).
		Msg("Run ended")
	return nil
}

// Flush writes every queued row now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil || b.queues == nil {
		return nil
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	return b.flushLocked()
}

func (b *Backend) flushLocked() error {
	if err := writeQueue(b.deps.DB, b.queues.FrameStates, "frame states", b.deps.Logger); err != nil {
		return err
	}
	return writeQueue(b.deps.DB, b.queues.Desyncs, "desyncs", b.deps.Logger)
}

// writeQueue drains q into the DB in batches of writeBatchSize, one transaction
// per batch. A failed batch goes back to the front of q for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) error {
	for !q.Empty() {
		items := q.Take(writeBatchSize)
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&items).Error
		})
		if err != nil {
			log.Error().Err(err).Str("table", name).Int("rows", len(items)).Msg("Error writing queue")
			q.Requeue(items...)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Trace().Str("table", name).Int("rows", len(items)).Msg("Wrote queue")
	}
	return nil
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
