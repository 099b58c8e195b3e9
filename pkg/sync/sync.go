// Package sync emits periodic SYNC frames for SYNC driven sampling.
// The producer is the only concurrent activity of a session : it runs
// on its own timer while the main loop keeps consuming frames, and
// shares no mutable state with the assembler.
package sync

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	epsoncan "github.com/openimu/epsoncan"
)

type Producer struct {
	transport *epsoncan.Transport
	ids       *epsoncan.COBIDSet
	task      *epsoncan.PeriodicTask
}

func NewProducer(transport *epsoncan.Transport, ids *epsoncan.COBIDSet) *Producer {
	return &Producer{transport: transport, ids: ids}
}

// Start begins emitting an empty (DLC 0) SYNC frame at rateHz.
func (producer *Producer) Start(rateHz float64) error {
	if rateHz <= 0 {
		return fmt.Errorf("sync rate %v Hz must be positive", rateHz)
	}
	if producer.task != nil {
		return fmt.Errorf("sync producer already running")
	}
	period := time.Duration(float64(time.Second) / rateHz)
	frame := epsoncan.NewFrame(producer.ids.SYNC, 0, 0)
	producer.task = producer.transport.SendPeriodic(frame, period)
	log.Infof("[SYNC] producing SYNC frames @ %v Hz", rateHz)
	return nil
}

// Stop halts emission. Safe to call when not started.
func (producer *Producer) Stop() {
	if producer.task == nil {
		return
	}
	producer.task.Stop()
	producer.task = nil
	log.Info("[SYNC] producer stopped")
}

// Running reports whether the producer is currently emitting.
func (producer *Producer) Running() bool {
	return producer.task != nil
}
