package epsoncan

import "time"

// Sample is one fully reassembled and scaled measurement. It is built
// exactly once per completed PDO cycle and never mutated afterwards.
type Sample struct {
	// Monotonic sample index, starting at 0
	Index uint64

	// Angular rate in deg/s, only meaningful for combined gyro+accel
	// devices (HasAngular)
	Angular    [3]float64
	HasAngular bool

	// Linear acceleration in mG
	Accel [3]float64

	// Temperature in degC (HasTemperature reports whether the device
	// streamed a temperature PDO this session)
	Temperature    float64
	HasTemperature bool

	// 16-bit sample counter embedded in TPDO1
	Counter uint16

	// Host reception time (UTC) of the cycle's TPDO1, or of the
	// completing frame when TPDO1 is not enabled
	Recv time.Time
	// Device clock timestamp, days + ticks since 1984-01-01
	Device time.Time

	// Raw unscaled values, for consumers that requested no scaling
	RawAngular [3]int32
	RawAccel   [3]int32
	RawTemp    int32
	Days       uint16
	Ticks      uint32
}

// SampleWriter consumes completed samples. Implementations own all
// presentation concerns (console, CSV, ...).
type SampleWriter interface {
	Write(sample *Sample) error
}
