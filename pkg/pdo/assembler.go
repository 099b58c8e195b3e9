// Package pdo reassembles the sample stream : each logical measurement
// is split by the sensor across up to four TPDO frames, which this
// package demultiplexes, decodes per device layout and recombines into
// scaled samples.
package pdo

import (
	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/heartbeat"
	"github.com/openimu/epsoncan/pkg/profile"
	"github.com/openimu/epsoncan/pkg/timestamp"
)

// Assembler accumulates TPDO frames until the completion mask equals
// the target mask, then emits exactly one Sample. A single assembler
// owns its mask and slots, frames must be fed from one goroutine.
type Assembler struct {
	ids     *epsoncan.COBIDSet
	profile *profile.Profile
	monitor *heartbeat.Monitor

	// target has one bit per enabled TPDO (bit0=TPDO1 .. bit3=TPDO4),
	// computed once during configuration from the device's enable bits
	target uint8
	mask   uint8
	slots  PartialSample
	index  uint64

	unrecognized uint64
}

func NewAssembler(ids *epsoncan.COBIDSet, prof *profile.Profile, targetMask uint8, monitor *heartbeat.Monitor) *Assembler {
	return &Assembler{
		ids:     ids,
		profile: prof,
		monitor: monitor,
		target:  targetMask,
	}
}

// Process consumes one frame from the stream. It returns a non-nil
// Sample exactly when the frame completes a cycle. Unknown identifiers
// are counted and skipped, never fatal.
func (assembler *Assembler) Process(frame epsoncan.Frame) *epsoncan.Sample {
	if assembler.monitor != nil && assembler.monitor.Owns(frame.ID) {
		assembler.monitor.Handle(frame)
		return nil
	}
	tpdo := assembler.ids.TPDONumber(frame.ID)
	if tpdo == 0 {
		assembler.unrecognized++
		log.Warnf("[PDO] unrecognized frame x%x, skipping", frame.ID)
		return nil
	}
	decode(assembler.profile.Layout(), tpdo, frame, &assembler.slots)
	assembler.mask |= uint8(1) << (tpdo - 1)
	if assembler.mask != assembler.target {
		return nil
	}
	sample := assembler.assemble(frame)
	// Slots are overwritten on the next cycle, only the mask resets
	assembler.mask = 0
	assembler.index++
	return sample
}

// assemble applies scale factors and epoch arithmetic to the current
// slot values. completing is the frame that closed the cycle, used for
// the host timestamp when TPDO1 is not part of the target mask.
func (assembler *Assembler) assemble(completing epsoncan.Frame) *epsoncan.Sample {
	prof := assembler.profile
	slots := &assembler.slots

	sample := &epsoncan.Sample{
		Index:      assembler.index,
		HasAngular: prof.HasGyro(),
		Counter:    slots.Counter,
		RawAngular: slots.Gyro,
		RawAccel:   slots.Accel,
		RawTemp:    slots.Temp,
		Days:       slots.Days,
		Ticks:      slots.Ticks,
		Device:     timestamp.Decode(slots.Days, slots.Ticks),
	}
	for i := 0; i < 3; i++ {
		sample.Angular[i] = float64(slots.Gyro[i]) * prof.GyroScale
		sample.Accel[i] = float64(slots.Accel[i]) * prof.AccelScale
	}
	tempBit := uint8(1) << (prof.TemperaturePDO() - 1)
	if assembler.target&tempBit != 0 {
		sample.HasTemperature = true
		sample.Temperature = prof.Temperature(slots.Temp)
	}
	if !slots.Recv.Timestamp.IsZero() {
		sample.Recv = slots.Recv.Timestamp
	} else {
		sample.Recv = completing.Timestamp
	}
	return sample
}

// TargetMask returns the completion mask the assembler waits for.
func (assembler *Assembler) TargetMask() uint8 {
	return assembler.target
}

// Unrecognized returns how many frames did not match any known
// identifier.
func (assembler *Assembler) Unrecognized() uint64 {
	return assembler.unrecognized
}
