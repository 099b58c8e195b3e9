package pdo

import (
	"encoding/binary"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/profile"
)

// PartialSample holds the raw fields collected from the TPDO frames of
// the in-progress cycle. Slots are overwritten in place as frames
// arrive and are only meaningful once the completion mask fires.
type PartialSample struct {
	Gyro    [3]int32
	Accel   [3]int32
	Temp    int32
	Counter uint16
	Days    uint16
	Ticks   uint32
	// Host reception time of TPDO1, the first frame of a cycle
	Recv epsoncan.Frame
}

// decode stores the fields of one TPDO frame (1..4) into the slots,
// using the packing of the resolved device family.
func decode(layout profile.Layout, tpdo int, frame epsoncan.Frame, slots *PartialSample) {
	data := frame.Data
	if layout == profile.Layout32 {
		// 32-bit paired layout of the accelerometer only family
		switch tpdo {
		case 1:
			slots.Accel[0] = int32(binary.LittleEndian.Uint32(data[0:4]))
			slots.Accel[1] = int32(binary.LittleEndian.Uint32(data[4:8]))
			slots.Recv = frame
		case 2:
			slots.Accel[2] = int32(binary.LittleEndian.Uint32(data[0:4]))
			slots.Counter = binary.LittleEndian.Uint16(data[4:6])
		case 3:
			slots.Days = binary.LittleEndian.Uint16(data[0:2])
			slots.Ticks = binary.LittleEndian.Uint32(data[2:6])
		case 4:
			slots.Temp = int32(binary.LittleEndian.Uint32(data[0:4]))
		}
		return
	}
	// 16-bit quad layout of the combined family
	switch tpdo {
	case 1:
		slots.Gyro[0] = int32(int16(binary.LittleEndian.Uint16(data[0:2])))
		slots.Gyro[1] = int32(int16(binary.LittleEndian.Uint16(data[2:4])))
		slots.Gyro[2] = int32(int16(binary.LittleEndian.Uint16(data[4:6])))
		slots.Counter = binary.LittleEndian.Uint16(data[6:8])
		slots.Recv = frame
	case 2:
		slots.Accel[0] = int32(int16(binary.LittleEndian.Uint16(data[0:2])))
		slots.Accel[1] = int32(int16(binary.LittleEndian.Uint16(data[2:4])))
		slots.Accel[2] = int32(int16(binary.LittleEndian.Uint16(data[4:6])))
		slots.Temp = int32(int16(binary.LittleEndian.Uint16(data[6:8])))
	case 3:
		slots.Days = binary.LittleEndian.Uint16(data[0:2])
		slots.Ticks = binary.LittleEndian.Uint32(data[2:6])
	case 4:
		// Auxiliary diagnostic frame, not part of the sample
	}
}
