package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&FrameState{},
	&Desync{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one simulated replay
type Run struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt       time.Time `json:"createdAt"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Scenario        string    `json:"scenario" gorm:"size:255"`
	Course          string    `json:"course" gorm:"size:127;index:idx_run_course"`
	Vehicle         string    `json:"vehicle" gorm:"size:64"`
	PlannedFrames   uint32    `json:"plannedFrames"`
	ReferenceFrames uint32    `json:"referenceFrames"`
	Frames          uint32    `json:"frames"`
	InSync          bool      `json:"inSync"`
	DesyncFrame     *uint32   `json:"desyncFrame"`

	// Trajectory is the driven path with the course's horizontal plane as XY and
	// height as Z.
	Trajectory       geom.LineString `json:"-"`
	TrajectoryLength float64         `json:"trajectoryLength"`
}

func (*Run) TableName() string {
	return "runs"
}

// FrameState is the vehicle state after one frame
type FrameState struct {
	Time       time.Time      `json:"time"`
	RunID      uint           `json:"runId" gorm:"index:idx_framestate_run_frame"`
	Run        Run            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Frame      uint32         `json:"frame" gorm:"index:idx_framestate_run_frame"`
	Stage      string         `json:"stage" gorm:"size:16"`
	Position   geom.Point     `json:"position"`
	VelocityX  float32        `json:"velocityX"`
	VelocityY  float32        `json:"velocityY"`
	VelocityZ  float32        `json:"velocityZ"`
	Speed      float32        `json:"speed"`
	SoftLimit  float32        `json:"softLimit"`
	Airtime    uint32         `json:"airtime"`
	Drift      string         `json:"drift" gorm:"size:16"`
	Boost      uint16         `json:"boost"`
	Wheelie    bool           `json:"wheelie"`
	Trick      bool           `json:"trick"`
	Subsystems datatypes.JSON `json:"subsystems" gorm:"default:'{}'"`
}

func (*FrameState) TableName() string {
	return "frame_states"
}

// Desync records the first frame that differed from the reference
type Desync struct {
	ID       uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time      `json:"time"`
	RunID    uint           `json:"runId" gorm:"index:idx_desync_run_id"`
	Run      Run            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Frame    uint32         `json:"frame"`
	Fields   datatypes.JSON `json:"fields" gorm:"default:'[]'"`
	Expected geom.Point     `json:"expected"`
	Actual   geom.Point     `json:"actual"`
}

func (*Desync) TableName() string {
	return "desyncs"
}
