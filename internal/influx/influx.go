// Package influx writes per-frame telemetry of a run to InfluxDB, or to a gzipped
// line protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/kartreplay/internal/config"
	"github.com/OCAP2/kartreplay/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Bucket receives frame and desync points.
const Bucket = "replay_frames"

// FrameDuration is the simulated time of one frame. Point timestamps are the run
// start plus the frame index times FrameDuration.
const FrameDuration = time.Second / 60

// ErrDisabled is returned by Connect when telemetry is switched off.
var ErrDisabled = errors.New("influx telemetry is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
		cfg:     cfg,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Client.Close()
		m.Client = nil
		m.Logger.Info().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influx backup path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}

	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure the bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, Bucket); err != nil {
		m.Logger.Info().Str("bucket", Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func runTags(p *influxdb2_write.Point, run *core.Run) {
	p.AddTag("run", strconv.FormatUint(uint64(run.ID), 10))
	p.AddTag("course", run.Course)
	p.AddTag("vehicle", run.Vehicle)
}

func frameTime(run *core.Run, frame uint32) time.Time {
	return run.StartTime.Add(time.Duration(frame) * FrameDuration)
}

// FramePoint builds the telemetry point of one frame.
func FramePoint(run *core.Run, s *core.FrameState) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("frame")
	runTags(p, run)
	p.AddTag("stage", s.Stage)
	p.AddField("frame", int64(s.Frame))
	p.AddField("speed", s.Speed)
	p.AddField("soft_limit", s.SoftLimit)
	p.AddField("airtime", int64(s.Airtime))
	p.AddField("boost", int64(s.Boost))
	p.AddField("drift", s.Drift)
	p.AddField("pos_x", s.Position.X)
	p.AddField("pos_y", s.Position.Y)
	p.AddField("pos_z", s.Position.Z)
	p.SetTime(frameTime(run, s.Frame))
	return p
}

// DesyncPoint builds the telemetry point of a desync.
func DesyncPoint(run *core.Run, d *core.Desync) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("desync")
	runTags(p, run)
	p.AddField("frame", int64(d.Frame))
	p.AddField("fields", strings.Join(d.Fields, ","))
	p.SetTime(frameTime(run, d.Frame))
	return p
}

// WriteFrame writes the telemetry point of one frame.
func (m *Manager) WriteFrame(run *core.Run, s *core.FrameState) error {
	return m.WritePoint(FramePoint(run, s))
}

// WriteDesync writes the telemetry point of a desync.
func (m *Manager) WriteDesync(run *core.Run, d *core.Desync) error {
	return m.WritePoint(DesyncPoint(run, d))
}

// Close flushes pending points and releases the client or the backup file.
func (m *Manager) Close() error {
	if m.Client != nil {
		if m.Writer != nil {
			m.Writer.Flush()
		}
		m.Client.Close()
		m.Client = nil
	}

	if m.BackupWriter != nil {
		err := m.BackupWriter.Close()
		if cerr := m.backupFile.Close(); err == nil {
			err = cerr
		}
		m.BackupWriter = nil
		m.backupFile = nil
		return err
	}
	return nil
}
