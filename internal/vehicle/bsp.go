package vehicle

import (
	"errors"
	"fmt"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

const (
	MaxWheels   = 4
	MaxHitboxes = 16
	MinWheels   = 2
)

var (
	ErrTooFewWheels   = errors.New("bsp has less than 2 wheels")
	ErrTooManyWheels  = errors.New("bsp has too many wheels")
	ErrTooManyHitbox  = errors.New("bsp has too many hitboxes")
	ErrInvalidHitbox  = errors.New("bsp hitbox radius must be positive")
	ErrInvalidCuboids = errors.New("bsp cuboids must be finite")
)

// Hitbox is one body collision sphere in vehicle space.
type Hitbox struct {
	Center    mathf.Vec3 `json:"center"`
	Radius    float32    `json:"radius"`
	WallOnly  bool       `json:"wallOnly"`
	TireIndex uint16     `json:"tireIndex"`
}

// Wheel describes one wheel pair's suspension. The left wheel mirrors
// SuspensionTop.X.
type Wheel struct {
	SuspensionDistance float32    `json:"suspensionDistance"`
	SuspensionSpeed    float32    `json:"suspensionSpeed"`
	SuspensionSlack    float32    `json:"suspensionSlack"`
	SuspensionTop      mathf.Vec3 `json:"suspensionTop"`
	RotationX          float32    `json:"rotationX"`
	Radius             float32    `json:"radius"`
	SphereRadius       float32    `json:"sphereRadius"`
}

// Bsp is the body and wheel geometry of a vehicle.
type Bsp struct {
	YOffset              float32       `json:"yOffset"`
	Hitboxes             []Hitbox      `json:"hitboxes"`
	Cuboids              [2]mathf.Vec3 `json:"cuboids"`
	AngularVelocityBoost float32       `json:"angularVelocityBoost"`
	Wheels               []Wheel       `json:"wheels"`
	RumbleDistance       float32       `json:"rumbleDistance"`
	RumbleSpeed          float32       `json:"rumbleSpeed"`
}

// Validate rejects geometry the physics cannot run with.
func (b *Bsp) Validate() error {
	if len(b.Wheels) < MinWheels {
		return fmt.Errorf("%w: got %d", ErrTooFewWheels, len(b.Wheels))
	}
	if len(b.Wheels) > MaxWheels {
		return fmt.Errorf("%w: got %d wheels", ErrTooManyWheels, len(b.Wheels))
	}
	if len(b.Hitboxes) > MaxHitboxes {
		return fmt.Errorf("%w: got %d", ErrTooManyHitbox, len(b.Hitboxes))
	}
	for i, hb := range b.Hitboxes {
		if !(hb.Radius > 0) || !hb.Center.IsFinite() {
			return fmt.Errorf("%w: hitbox %d", ErrInvalidHitbox, i)
		}
	}
	if !b.Cuboids[0].IsFinite() || !b.Cuboids[1].IsFinite() {
		return ErrInvalidCuboids
	}
	return nil
}

// Handle is the bike handlebar the front wheel hangs from. Angles are radians.
type Handle struct {
	Pos    mathf.Vec3 `json:"pos"`
	Angles mathf.Vec3 `json:"angles"`
}

// HandleFromDegrees converts a handle stored with angles in degrees.
func HandleFromDegrees(pos, angles mathf.Vec3) Handle {
	return Handle{Pos: pos, Angles: angles.Radians()}
}
