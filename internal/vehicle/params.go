// Package vehicle holds the static description of a kart or bike: its merged
// kart+driver parameters, its body and wheel geometry and the vehicle catalogue.
package vehicle

// DriftType selects the drift style of a vehicle.
type DriftType int32

const (
	DriftKartOutside DriftType = iota
	DriftBikeOutside
	DriftBikeInside
)

func (d DriftType) String() string {
	switch d {
	case DriftKartOutside:
		return "kart_outside"
	case DriftBikeOutside:
		return "bike_outside"
	case DriftBikeInside:
		return "bike_inside"
	default:
		return "unknown"
	}
}

// WeightClass of the driver.
type WeightClass int32

const (
	WeightLight WeightClass = iota
	WeightMedium
	WeightHeavy
)

// Params is one kart or driver parameter block. Merging a kart block with a driver
// block gives the stats of the combination.
type Params struct {
	NumTires                   int32       `json:"numTires"`
	DriftType                  DriftType   `json:"driftType"`
	WeightClass                WeightClass `json:"weightClass"`
	Unknown                    float32     `json:"unknown"`
	Weight                     float32     `json:"weight"`
	BumpDeviation              float32     `json:"bumpDeviation"`
	Speed                      float32     `json:"speed"`
	SpeedInTurn                float32     `json:"speedInTurn"`
	Tilt                       float32     `json:"tilt"`
	AccelerationYs             [4]float32  `json:"accelerationYs"`
	AccelerationXs             [4]float32  `json:"accelerationXs"`
	DriftAccelerationYs        [2]float32  `json:"driftAccelerationYs"`
	DriftAccelerationXs        [2]float32  `json:"driftAccelerationXs"`
	HandlingTightnessManual    float32     `json:"handlingTightnessManual"`
	HandlingTightnessAuto      float32     `json:"handlingTightnessAuto"`
	HandlingReactivity         float32     `json:"handlingReactivity"`
	DriftTightnessManual       float32     `json:"driftTightnessManual"`
	DriftTightnessAuto         float32     `json:"driftTightnessAuto"`
	DriftReactivity            float32     `json:"driftReactivity"`
	DriftTargetAngle           float32     `json:"driftTargetAngle"`
	DriftDecrement             float32     `json:"driftDecrement"`
	MiniTurboDuration          int32       `json:"miniTurboDuration"`
	SpeedMultipliers           [32]float32 `json:"speedMultipliers"`
	RotationMultipliers        [32]float32 `json:"rotationMultipliers"`
	RotatingItemsZRadius       float32     `json:"rotatingItemsZRadius"`
	RotatingItemsXRadius       float32     `json:"rotatingItemsXRadius"`
	RotatingTrailingItemsYDist float32     `json:"rotatingTrailingItemsYDist"`
	RotatingTrailingItemsZDist float32     `json:"rotatingTrailingItemsZDist"`
	MaxNormalAcceleration      float32     `json:"maxNormalAcceleration"`
	MegaMushroomScale          float32     `json:"megaMushroomScale"`
	RearToFrontTireDist        float32     `json:"rearToFrontTireDist"`
}

// Merge adds the driver block to the kart block. Fields the game does not sum are
// taken from the kart; only the first three acceleration x points and the first
// drift acceleration x point are summed.
func Merge(kart, driver Params) Params {
	out := kart

	out.Weight += driver.Weight
	out.Speed += driver.Speed
	out.SpeedInTurn += driver.SpeedInTurn

	for i := 0; i < 4; i++ {
		out.AccelerationYs[i] += driver.AccelerationYs[i]
	}
	for i := 0; i < 3; i++ {
		out.AccelerationXs[i] += driver.AccelerationXs[i]
	}
	for i := 0; i < 2; i++ {
		out.DriftAccelerationYs[i] += driver.DriftAccelerationYs[i]
	}
	out.DriftAccelerationXs[0] += driver.DriftAccelerationXs[0]

	out.HandlingTightnessManual += driver.HandlingTightnessManual
	out.HandlingTightnessAuto += driver.HandlingTightnessAuto
	out.HandlingReactivity += driver.HandlingReactivity
	out.DriftTightnessManual += driver.DriftTightnessManual
	out.DriftTightnessAuto += driver.DriftTightnessAuto
	out.DriftReactivity += driver.DriftReactivity
	out.MiniTurboDuration += driver.MiniTurboDuration

	for i := 0; i < 32; i++ {
		out.SpeedMultipliers[i] += driver.SpeedMultipliers[i]
		out.RotationMultipliers[i] += driver.RotationMultipliers[i]
	}

	return out
}

// IsBike reports a bike drift type.
func (p *Params) IsBike() bool {
	return p.DriftType == DriftBikeOutside || p.DriftType == DriftBikeInside
}

// IsInsideDrift reports an inside-drifting bike.
func (p *Params) IsInsideDrift() bool {
	return p.DriftType == DriftBikeInside
}
