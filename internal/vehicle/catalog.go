package vehicle

import (
	"fmt"
	"strings"
)

// Vehicle id ranges.
const (
	KartID = 0
	BikeID = 18
	MaxID  = 36
)

var names = [MaxID]string{
	"sdf_kart", "mdf_kart", "ldf_kart", "sa_kart", "ma_kart", "la_kart",
	"sb_kart", "mb_kart", "lb_kart", "sc_kart", "mc_kart", "lc_kart",
	"sd_kart", "md_kart", "ld_kart", "se_kart", "me_kart", "le_kart",

	"sdf_bike", "mdf_bike", "ldf_bike", "sa_bike", "ma_bike", "la_bike",
	"sb_bike", "mb_bike", "lb_bike", "sc_bike", "mc_bike", "lc_bike",
	"sd_bike", "md_bike", "ld_bike", "se_bike", "me_bike", "le_bike",
}

// Name returns the archive name of a vehicle id, or "" when out of range.
func Name(id uint8) string {
	if int(id) >= MaxID {
		return ""
	}
	return names[id]
}

// ByName looks up a vehicle id by archive name.
func ByName(name string) (uint8, error) {
	name = strings.ToLower(strings.TrimSuffix(name, ".bsp"))
	for i, n := range names {
		if n == name {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle %q", name)
}

// IsBikeID reports whether the id is in the bike range.
func IsBikeID(id uint8) bool {
	return id >= BikeID && id < MaxID
}

// TireLayout says which of the four bsp wheel slots a vehicle uses.
type TireLayout struct {
	WheelCount int
	HasHandle  bool
}

var tireLayouts = []TireLayout{
	{WheelCount: 4},
	{WheelCount: 2, HasHandle: true},
	{WheelCount: 2},
	{WheelCount: 3},
}

// LayoutFor maps the params tire count index to a layout. Unknown indices give no
// wheels.
func LayoutFor(numTires int32) TireLayout {
	if numTires >= 0 && int(numTires) < len(tireLayouts) {
		return tireLayouts[numTires]
	}
	return TireLayout{}
}

// WheelSlot is one placed wheel: the bsp wheel pair it uses and whether it hangs
// from the handle.
type WheelSlot struct {
	Slot       int
	BspIndex   int
	OnHandle   bool
	MirroredLR bool
}

// Slots lists the wheels to place, in placement order.
func (l TireLayout) Slots() []WheelSlot {
	var out []WheelSlot
	for i := 0; i < 4; i++ {
		if l.WheelCount == 2 && i%2 != 0 {
			continue
		}
		if l.WheelCount == 3 && i == 0 {
			continue
		}
		if l.WheelCount == 0 {
			break
		}
		out = append(out, WheelSlot{
			Slot:       i,
			BspIndex:   i / 2,
			OnHandle:   i == 0 && l.HasHandle,
			MirroredLR: i%2 == 1,
		})
	}
	return out
}
