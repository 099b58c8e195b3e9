// Package profile maps an Epson product code to the constants needed to
// decode and scale its PDO stream : scale factors, frame layout and the
// per family configuration code tables.
package profile

import (
	"sort"
	"strings"
	"sync"

	epsoncan "github.com/openimu/epsoncan"
)

// Family distinguishes the two Epson CAN sensor lines, which differ in
// frame layout and temperature conversion.
type Family int

const (
	// Accelerometer / inclinometer only products ("A..."), 32-bit fields
	FamilyAccel Family = iota
	// Combined gyro + accelerometer products ("G..."), 16-bit fields
	FamilyInertial
)

func (f Family) String() string {
	if f == FamilyAccel {
		return "accel"
	}
	return "inertial"
}

// Layout selects how the four TPDO frames are packed.
type Layout int

const (
	// Layout32 : TPDO1 <ii ax,ay | TPDO2 <iH az,counter | TPDO3 <HI days,ticks | TPDO4 <i temp
	Layout32 Layout = iota
	// Layout16 : TPDO1 <hhhH gx,gy,gz,counter | TPDO2 <hhhh ax,ay,az,temp | TPDO3 <HI days,ticks | TPDO4 aux
	Layout16
)

// Model holds the datasheet constants of one product variant.
type Model struct {
	Name       string  // product code prefix, e.g. "G570PR2"
	Family     Family
	GyroScale  float64 // (deg/s)/lsb, 0 for accel only products
	AccelScale float64 // mG/lsb
	TempScale  float64 // degC/lsb
	TempOffset float64 // degC added after scaling
}

// Profile is the resolved, immutable per session view of a device. It
// is constructed once from the product code the device reports and
// shared read only by every downstream component.
type Profile struct {
	ProductCode string
	Model
}

// Built-in model table. Scale factors come straight from the datasheets,
// silently substituting a default here would produce plausible looking
// but wrong physical units, hence resolution of unknown codes fails.
var models = []Model{
	{
		Name:       "A552AC",
		Family:     FamilyAccel,
		AccelScale: 5.96046e-5,
		TempScale:  0.001,
		TempOffset: 0,
	},
	{
		Name:       "A352AD",
		Family:     FamilyAccel,
		AccelScale: 1.19209e-4,
		TempScale:  0.0042725,
		TempOffset: 25 - 2634*0.0042725,
	},
	{
		Name:       "G550PC2",
		Family:     FamilyInertial,
		GyroScale:  0.0125,
		AccelScale: 0.4,
		TempScale:  0.0039063,
		TempOffset: 25 - 2634*0.0039063,
	},
	{
		Name:       "G570PR2",
		Family:     FamilyInertial,
		GyroScale:  0.0151515,
		AccelScale: 0.5,
		TempScale:  0.0039063,
		TempOffset: 0,
	},
}

var modelsMu sync.RWMutex

// Resolve matches a product code against the model table by prefix,
// longest prefix first. Resolution is deterministic : resolving the
// same code twice yields identical profiles.
func Resolve(productCode string) (*Profile, error) {
	code := strings.TrimRight(productCode, "\x00 ")
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	candidates := make([]Model, len(models))
	copy(candidates, models)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Name) > len(candidates[j].Name)
	})
	for _, model := range candidates {
		if strings.HasPrefix(code, model.Name) {
			return &Profile{ProductCode: code, Model: model}, nil
		}
	}
	return nil, epsoncan.ErrUnknownDeviceProfile
}

// Register adds or replaces a model in the table. Used by LoadINI and
// available for programmatic extension.
func Register(model Model) {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	for i := range models {
		if models[i].Name == model.Name {
			models[i] = model
			return
		}
	}
	models = append(models, model)
}

// Layout returns the TPDO frame packing of the model's family.
func (m Model) Layout() Layout {
	if m.Family == FamilyAccel {
		return Layout32
	}
	return Layout16
}

// HasGyro reports whether the model streams angular rate.
func (m Model) HasGyro() bool {
	return m.Family == FamilyInertial
}

// TemperaturePDO returns which TPDO (1..4) carries the temperature
// field for the model's layout.
func (m Model) TemperaturePDO() int {
	if m.Family == FamilyAccel {
		return 4
	}
	return 2
}

// Temperature converts a raw temperature field to degC. The combined
// family uses the same raw*scale+offset form as the accel family, on
// its own temperature channel.
func (m Model) Temperature(raw int32) float64 {
	return float64(raw)*m.TempScale + m.TempOffset
}
