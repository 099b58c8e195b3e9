// Package epsoncan implements the CANopen application layer used by
// Epson inertial sensor units (M-A552 / M-G5xx series) : NMT state
// control, expedited SDO configuration access, TIME and SYNC messages
// and multi frame TPDO sample reassembly.
package epsoncan

import "time"

// A CAN frame as seen by the protocol layer.
// Timestamp is the host reception time (UTC), zero for outgoing frames.
type Frame struct {
	ID        uint32
	Flags     uint8
	DLC       uint8
	Data      [8]byte
	Timestamp time.Time
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Interface for handling a received CAN frame
type FrameHandler interface {
	Handle(frame Frame)
}
