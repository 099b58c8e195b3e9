// Package heartbeat tracks heartbeat traffic from the monitored nodes.
// During streaming a heartbeat from the sensor node itself means the
// device rebooted : the monitor surfaces this as an advisory condition
// that the caller may answer with a Reset-Node command.
package heartbeat

import (
	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/nmt"
)

var stateDescription = map[uint8]string{
	nmt.StateInitializing:   "BOOT-UP",
	nmt.StateStopped:        "STOPPED",
	nmt.StateOperational:    "OPERATIONAL",
	nmt.StatePreOperational: "PRE-OPERATIONAL",
}

type Monitor struct {
	ids           *epsoncan.COBIDSet
	counts        map[uint32]uint64
	resetDetected bool
}

func NewMonitor(ids *epsoncan.COBIDSet) *Monitor {
	return &Monitor{ids: ids, counts: make(map[uint32]uint64)}
}

// Owns reports whether the identifier belongs to a monitored heartbeat.
func (monitor *Monitor) Owns(id uint32) bool {
	return monitor.ids.IsHeartbeat(id)
}

// Handle consumes one heartbeat frame, counting it and flagging a
// detected reset when it comes from the sensor node itself.
func (monitor *Monitor) Handle(frame epsoncan.Frame) {
	if frame.DLC != 1 {
		return
	}
	monitor.counts[frame.ID]++
	state := frame.Data[0]
	primary := frame.ID == monitor.ids.PrimaryHeartbeat()
	log.Infof("[HB] x%x state %v (seen %d times)", frame.ID, stateDescription[state], monitor.counts[frame.ID])
	if primary {
		monitor.resetDetected = true
	}
}

// ResetDetected reports and clears the device reset condition.
func (monitor *Monitor) ResetDetected() bool {
	detected := monitor.resetDetected
	monitor.resetDetected = false
	return detected
}

// Count returns how many heartbeats have been seen for an identifier.
func (monitor *Monitor) Count(id uint32) uint64 {
	return monitor.counts[id]
}
