// Package timestamp converts between host time and the CANopen
// time-of-day representation used by both the TIME producer frame and
// the device clock fields streamed in TPDO3.
package timestamp

import (
	"encoding/binary"
	"time"

	epsoncan "github.com/openimu/epsoncan"
)

// The CANopen era starts on the 1st of january 1984.
var Epoch = time.Date(1984, time.January, 1, 0, 0, 0, 0, time.UTC)

// One device tick is 1/16 of a millisecond.
const tickDuration = 62500 * time.Nanosecond

// Encode splits an instant into whole days since the epoch and device
// ticks within the day.
func Encode(t time.Time) (days uint16, ticks uint32) {
	elapsed := t.UTC().Sub(Epoch)
	days = uint16(elapsed / (24 * time.Hour))
	remainder := elapsed - time.Duration(days)*24*time.Hour
	ticks = uint32(remainder / tickDuration)
	return days, ticks
}

// Decode is the inverse of Encode : epoch + days + ticks/16 ms.
func Decode(days uint16, ticks uint32) time.Time {
	return Epoch.AddDate(0, 0, int(days)).Add(time.Duration(ticks) * tickDuration)
}

// Frame builds the 6-byte TIME producer frame for a host instant,
// little-endian [u16 days][u32 ticks].
func Frame(cobId uint32, t time.Time) epsoncan.Frame {
	days, ticks := Encode(t)
	frame := epsoncan.NewFrame(cobId, 0, 6)
	binary.LittleEndian.PutUint16(frame.Data[0:2], days)
	binary.LittleEndian.PutUint32(frame.Data[2:6], ticks)
	return frame
}

// Parse decodes a 6-byte TIME payload.
func Parse(frame epsoncan.Frame) (days uint16, ticks uint32) {
	days = binary.LittleEndian.Uint16(frame.Data[0:2])
	ticks = binary.LittleEndian.Uint32(frame.Data[2:6])
	return days, ticks
}
