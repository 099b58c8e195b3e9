package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/nmt"
)

func heartbeatFrame(id uint32, state uint8) epsoncan.Frame {
	frame := epsoncan.NewFrame(id, 0, 1)
	frame.Data[0] = state
	return frame
}

func TestMonitorCounts(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(2, 2)
	monitor := NewMonitor(ids)

	assert.True(t, monitor.Owns(0x701))
	assert.True(t, monitor.Owns(0x702))
	assert.False(t, monitor.Owns(0x703))

	monitor.Handle(heartbeatFrame(0x701, nmt.StateOperational))
	monitor.Handle(heartbeatFrame(0x701, nmt.StateOperational))
	monitor.Handle(heartbeatFrame(0x702, nmt.StateInitializing))
	assert.EqualValues(t, 2, monitor.Count(0x701))
	assert.EqualValues(t, 1, monitor.Count(0x702))

	// Malformed heartbeat is ignored
	monitor.Handle(epsoncan.NewFrame(0x701, 0, 8))
	assert.EqualValues(t, 2, monitor.Count(0x701))
}

func TestMonitorResetDetection(t *testing.T) {
	ids, _ := epsoncan.DeriveCOBIDs(2, 2)
	monitor := NewMonitor(ids)

	// Another node's heartbeat is counted but not a reset condition
	monitor.Handle(heartbeatFrame(0x701, nmt.StateInitializing))
	assert.False(t, monitor.ResetDetected())

	// The sensor node's own heartbeat is
	monitor.Handle(heartbeatFrame(ids.PrimaryHeartbeat(), nmt.StateInitializing))
	assert.True(t, monitor.ResetDetected())
	// Condition clears on read
	assert.False(t, monitor.ResetDetected())
}
