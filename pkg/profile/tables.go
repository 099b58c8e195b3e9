package profile

import "fmt"

// Filter selection codes written to object 0x61A1 sub 1. Each family
// ships its own table, see table 5.3 of the respective datasheets.
var filterCodesAccel = map[string]uint8{
	"K64_FC83":   0x01,
	"K64_FC220":  0x02,
	"K128_FC36":  0x03,
	"K128_FC110": 0x04,
	"K128_FC350": 0x05,
	"K512_FC9":   0x06,
	"K512_FC16":  0x07,
	"K512_FC60":  0x08,
	"K512_FC210": 0x09,
	"K512_FC460": 0x0A,
	"UDF4":       0x0B,
	"UDF64":      0x0C,
	"UDF128":     0x0D,
	"UDF512":     0x0E,
}

var filterCodesInertial = map[string]uint8{
	"MV_AVG2":   0x01,
	"MV_AVG4":   0x02,
	"MV_AVG8":   0x03,
	"MV_AVG16":  0x04,
	"MV_AVG32":  0x05,
	"MV_AVG64":  0x06,
	"MV_AVG128": 0x07,
	"K32_FC50":  0x08,
	"K32_FC100": 0x09,
	"K32_FC200": 0x0A,
	"K32_FC400": 0x0B,
}

// Rate to filter auto selection for the standard output rates. Rates
// outside the table fall back to FallbackFilter.
var autoFilterAccel = map[int]string{
	1000: "K512_FC460",
	500:  "K512_FC210",
	200:  "K512_FC60",
	100:  "K512_FC16",
	50:   "K512_FC9",
}

var autoFilterInertial = map[int]string{
	1000: "K32_FC400",
	500:  "K32_FC200",
	200:  "K32_FC100",
	100:  "K32_FC50",
	50:   "MV_AVG32",
}

// Bit rate selection codes written to object 0x2000 sub 2, common to
// both families.
var bitrateCodes = map[int]uint8{
	1000000: 0x01,
	500000:  0x02,
	250000:  0x03,
	125000:  0x04,
}

// FilterCode resolves a filter name against the family table.
func (m Model) FilterCode(name string) (uint8, error) {
	table := filterCodesAccel
	if m.Family == FamilyInertial {
		table = filterCodesInertial
	}
	code, ok := table[name]
	if !ok {
		return 0, fmt.Errorf("filter %q is not valid for the %v family", name, m.Family)
	}
	return code, nil
}

// AutoFilter picks the moving average filter matching an output rate,
// falling back to a family default when the rate is non standard.
func (m Model) AutoFilter(rateHz float64, syncDriven bool) string {
	table := autoFilterAccel
	if m.Family == FamilyInertial {
		table = autoFilterInertial
	}
	if name, ok := table[int(rateHz)]; ok {
		return name
	}
	return m.FallbackFilter(syncDriven)
}

// FallbackFilter is the family default for non standard rates. SYNC
// driven sampling favors the widest bandwidth since the effective rate
// is set by the SYNC producer.
func (m Model) FallbackFilter(syncDriven bool) string {
	if m.Family == FamilyAccel {
		if syncDriven {
			return "K512_FC460"
		}
		return "K512_FC9"
	}
	if syncDriven {
		return "K32_FC400"
	}
	return "MV_AVG32"
}

// BitrateCode resolves a CAN bit rate in bit/s to its selection code.
func (m Model) BitrateCode(bitrate int) (uint8, error) {
	code, ok := bitrateCodes[bitrate]
	if !ok {
		return 0, fmt.Errorf("unsupported CAN bit rate %d", bitrate)
	}
	return code, nil
}

// IntervalForRate converts an output rate in Hz to the millisecond
// interval written to object 0x2001.
func IntervalForRate(rateHz float64) (uint32, error) {
	if rateHz <= 0 || rateHz > 1000 {
		return 0, fmt.Errorf("output rate %v Hz out of range (0, 1000]", rateHz)
	}
	return uint32(1000 / rateHz), nil
}
