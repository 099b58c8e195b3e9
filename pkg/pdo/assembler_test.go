package pdo

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/heartbeat"
	"github.com/openimu/epsoncan/pkg/profile"
	"github.com/openimu/epsoncan/pkg/timestamp"
)

func pdoFrame(id uint32, build func(data []byte)) epsoncan.Frame {
	frame := epsoncan.NewFrame(id, 0, 8)
	frame.Timestamp = time.Now().UTC()
	build(frame.Data[:])
	return frame
}

func putI32(data []byte, v int32)  { binary.LittleEndian.PutUint32(data, uint32(v)) }
func putI16(data []byte, v int16)  { binary.LittleEndian.PutUint16(data, uint16(v)) }
func putU16(data []byte, v uint16) { binary.LittleEndian.PutUint16(data, v) }
func putU32(data []byte, v uint32) { binary.LittleEndian.PutUint32(data, v) }

func TestAssemblerExactlyOnceAnyOrder(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	prof, err := profile.Resolve("A552AC10")
	require.Nil(t, err)
	assembler := NewAssembler(ids, prof, 0x0F, heartbeat.NewMonitor(ids))

	tpdo1 := pdoFrame(ids.TPDO[0], func(d []byte) { putI32(d[0:], 1000); putI32(d[4:], -1000) })
	tpdo2 := pdoFrame(ids.TPDO[1], func(d []byte) { putI32(d[0:], 2000); putU16(d[4:], 7) })
	tpdo3 := pdoFrame(ids.TPDO[2], func(d []byte) { putU16(d[0:], 100); putU32(d[2:], 1600) })
	tpdo4 := pdoFrame(ids.TPDO[3], func(d []byte) { putI32(d[0:], 25000) })

	// Arrival order within a cycle does not matter and emission
	// happens exactly once, on the completing frame
	for _, order := range [][]epsoncan.Frame{
		{tpdo1, tpdo2, tpdo3, tpdo4},
		{tpdo4, tpdo3, tpdo2, tpdo1},
		{tpdo2, tpdo4, tpdo1, tpdo3},
	} {
		var emitted []*epsoncan.Sample
		for _, frame := range order {
			if sample := assembler.Process(frame); sample != nil {
				emitted = append(emitted, sample)
			}
		}
		require.Len(t, emitted, 1)
	}

	// Monotonic index across cycles
	finish := func() *epsoncan.Sample {
		assembler.Process(tpdo1)
		assembler.Process(tpdo2)
		assembler.Process(tpdo3)
		return assembler.Process(tpdo4)
	}
	sample := finish()
	require.NotNil(t, sample)
	assert.EqualValues(t, 3, sample.Index)
	sample = finish()
	require.NotNil(t, sample)
	assert.EqualValues(t, 4, sample.Index)
}

func TestAssemblerAccelScaling(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	prof, err := profile.Resolve("A552AC10")
	require.Nil(t, err)
	assembler := NewAssembler(ids, prof, 0x0F, heartbeat.NewMonitor(ids))

	assembler.Process(pdoFrame(ids.TPDO[0], func(d []byte) { putI32(d[0:], 16777); putI32(d[4:], -16777) }))
	assembler.Process(pdoFrame(ids.TPDO[1], func(d []byte) { putI32(d[0:], 0); putU16(d[4:], 42) }))
	assembler.Process(pdoFrame(ids.TPDO[2], func(d []byte) { putU16(d[0:], 14000); putU32(d[2:], 160) }))
	sample := assembler.Process(pdoFrame(ids.TPDO[3], func(d []byte) { putI32(d[0:], 25000) }))
	require.NotNil(t, sample)

	assert.False(t, sample.HasAngular)
	assert.InDelta(t, 16777*5.96046e-5, sample.Accel[0], 1e-9)
	assert.InDelta(t, -16777*5.96046e-5, sample.Accel[1], 1e-9)
	assert.InDelta(t, 0, sample.Accel[2], 1e-9)
	assert.EqualValues(t, 42, sample.Counter)
	assert.True(t, sample.HasTemperature)
	assert.InDelta(t, 25.0, sample.Temperature, 1e-9)
	expected := timestamp.Epoch.AddDate(0, 0, 14000).Add(10 * time.Millisecond)
	assert.Equal(t, expected, sample.Device)
}

func TestAssemblerInertialScaling(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	prof, err := profile.Resolve("G570PR20")
	require.Nil(t, err)
	// TPDO4 disabled, as on the bench units
	assembler := NewAssembler(ids, prof, 0x07, heartbeat.NewMonitor(ids))

	tpdo1 := pdoFrame(ids.TPDO[0], func(d []byte) {
		putI16(d[0:], 100)
		putI16(d[2:], -200)
		putI16(d[4:], 300)
		putU16(d[6:], 9)
	})
	tpdo2 := pdoFrame(ids.TPDO[1], func(d []byte) {
		putI16(d[0:], 10)
		putI16(d[2:], -10)
		putI16(d[4:], 0)
		putI16(d[6:], 1280)
	})
	tpdo3 := pdoFrame(ids.TPDO[2], func(d []byte) { putU16(d[0:], 14000); putU32(d[2:], 160) })

	assembler.Process(tpdo1)
	assembler.Process(tpdo2)
	sample := assembler.Process(tpdo3)
	require.NotNil(t, sample)

	assert.True(t, sample.HasAngular)
	assert.InDelta(t, 1.51515, sample.Angular[0], 1e-9)
	assert.InDelta(t, -3.0303, sample.Angular[1], 1e-9)
	assert.InDelta(t, 4.54545, sample.Angular[2], 1e-9)
	assert.InDelta(t, 5.0, sample.Accel[0], 1e-9)
	assert.InDelta(t, -5.0, sample.Accel[1], 1e-9)
	assert.InDelta(t, 0.0, sample.Accel[2], 1e-9)
	assert.EqualValues(t, 9, sample.Counter)
	// Temperature rides in TPDO2 for this family
	assert.True(t, sample.HasTemperature)
	assert.InDelta(t, 1280*0.0039063, sample.Temperature, 1e-9)
	expected := timestamp.Epoch.AddDate(0, 0, 14000).Add(10 * time.Millisecond)
	assert.Equal(t, expected, sample.Device)
	// Host timestamp comes from the cycle's TPDO1
	assert.Equal(t, tpdo1.Timestamp, sample.Recv)
}

func TestAssemblerRecvFallsBackToCompletingFrame(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	prof, _ := profile.Resolve("A552AC10")
	// TPDO1 not part of the enabled set
	assembler := NewAssembler(ids, prof, 0x0C, heartbeat.NewMonitor(ids))

	assembler.Process(pdoFrame(ids.TPDO[2], func(d []byte) { putU16(d[0:], 1); putU32(d[2:], 0) }))
	tpdo4 := pdoFrame(ids.TPDO[3], func(d []byte) { putI32(d[0:], 0) })
	sample := assembler.Process(tpdo4)
	require.NotNil(t, sample)
	assert.Equal(t, tpdo4.Timestamp, sample.Recv)
}

func TestAssemblerUnrecognizedAndHeartbeat(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	prof, _ := profile.Resolve("A552AC10")
	monitor := heartbeat.NewMonitor(ids)
	assembler := NewAssembler(ids, prof, 0x0F, monitor)

	// Stray identifier : counted, skipped, no sample
	assert.Nil(t, assembler.Process(epsoncan.NewFrame(0x7FF, 0, 8)))
	assert.EqualValues(t, 1, assembler.Unrecognized())

	// Heartbeat goes to the monitor, not the completion mask
	hb := epsoncan.NewFrame(ids.PrimaryHeartbeat(), 0, 1)
	assert.Nil(t, assembler.Process(hb))
	assert.EqualValues(t, 1, monitor.Count(ids.PrimaryHeartbeat()))
	assert.True(t, monitor.ResetDetected())
}
