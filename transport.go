package epsoncan

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	can "github.com/openimu/epsoncan/pkg/can"
)

const defaultRxBufferSize = 512

// Transport is the single consumption point for bus traffic. Incoming
// frames are stamped with the host reception time (UTC) and buffered in
// arrival order, to be pulled one at a time with ReceiveNext. SDO
// transactions and PDO streaming both drain this one ordered stream, so
// they must never run concurrently : configuration happens strictly
// before streaming starts.
type Transport struct {
	mu     sync.Mutex
	bus    can.Bus
	rx     chan Frame
	closed bool
	done   chan struct{}
	tasks  []*PeriodicTask
}

// NewTransport connects the bus and subscribes to its frames.
func NewTransport(bus can.Bus) (*Transport, error) {
	t := &Transport{
		bus:  bus,
		rx:   make(chan Frame, defaultRxBufferSize),
		done: make(chan struct{}),
	}
	if err := bus.Connect(); err != nil {
		return nil, err
	}
	if err := bus.Subscribe(t); err != nil {
		_ = bus.Disconnect()
		return nil, err
	}
	return t, nil
}

// Handle implements can.FrameListener, called by the bus backend for
// every received frame.
func (t *Transport) Handle(frame can.Frame) {
	stamped := Frame{
		ID:        frame.ID,
		Flags:     frame.Flags,
		DLC:       frame.DLC,
		Data:      frame.Data,
		Timestamp: time.Now().UTC(),
	}
	select {
	case t.rx <- stamped:
	case <-t.done:
	default:
		// Consumer is too slow, frame is lost
		log.Warnf("[TRANSPORT] rx buffer full, dropping frame x%x", frame.ID)
	}
}

// Send transmits one frame on the bus.
func (t *Transport) Send(frame Frame) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()
	return t.bus.Send(can.Frame{ID: frame.ID, Flags: frame.Flags, DLC: frame.DLC, Data: frame.Data})
}

// ReceiveNext blocks until the next frame arrives, the context is
// cancelled, or the transport is closed. Frames are delivered strictly
// in bus arrival order.
func (t *Transport) ReceiveNext(ctx context.Context) (Frame, error) {
	select {
	case frame := <-t.rx:
		return frame, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.done:
		return Frame{}, ErrTransportClosed
	}
}

// PeriodicTask sends one frame at a fixed period until stopped.
type PeriodicTask struct {
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Stop terminates the periodic transmission. Safe to call twice.
func (task *PeriodicTask) Stop() {
	task.stopOnce.Do(func() { close(task.stop) })
	task.wg.Wait()
}

// SendPeriodic spawns the one concurrent activity of a session : a
// ticker goroutine transmitting frame at the given period. It shares no
// mutable state with the receive path.
func (t *Transport) SendPeriodic(frame Frame, period time.Duration) *PeriodicTask {
	task := &PeriodicTask{stop: make(chan struct{})}
	task.wg.Add(1)
	go func() {
		defer task.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := t.Send(frame); err != nil {
					log.Errorf("[TRANSPORT] periodic send of x%x failed : %v", frame.ID, err)
					return
				}
			case <-task.stop:
				return
			case <-t.done:
				return
			}
		}
	}()
	t.mu.Lock()
	t.tasks = append(t.tasks, task)
	t.mu.Unlock()
	return task
}

// Close stops all periodic tasks and releases the bus. It is called on
// every exit path, including error paths, and is safe to call twice.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	tasks := t.tasks
	t.tasks = nil
	t.mu.Unlock()

	close(t.done)
	for _, task := range tasks {
		task.Stop()
	}
	return t.bus.Disconnect()
}
