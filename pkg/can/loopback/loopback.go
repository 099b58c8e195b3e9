package loopback

import (
	"sync"

	can "github.com/openimu/epsoncan/pkg/can"
)

// In process CAN bus used for tests and examples. Sent frames are
// recorded and may be answered synchronously by an OnSend hook, which
// makes it easy to script a device side responder without hardware or
// an external broker.

func init() {
	can.RegisterInterface("loopback", func(channel string) (can.Bus, error) {
		return New(), nil
	})
}

type Bus struct {
	mu       sync.Mutex
	listener can.FrameListener
	sent     []can.Frame

	// OnSend, when set, is invoked after every Send with the sent frame.
	// A scripted responder typically calls Inject from it.
	OnSend func(frame can.Frame)
}

func New() *Bus {
	return &Bus{}
}

// "Connect" implementation of Bus interface
func (b *Bus) Connect(...any) error {
	return nil
}

// "Disconnect" implementation of Bus interface
func (b *Bus) Disconnect() error {
	return nil
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	b.sent = append(b.sent, frame)
	onSend := b.OnSend
	b.mu.Unlock()
	if onSend != nil {
		onSend(frame)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(callback can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = callback
	return nil
}

// Inject delivers a frame to the subscribed listener, as if it had
// arrived on the bus.
func (b *Bus) Inject(frame can.Frame) {
	b.mu.Lock()
	listener := b.listener
	b.mu.Unlock()
	if listener != nil {
		listener.Handle(frame)
	}
}

// Sent returns a copy of every frame sent so far, in order.
func (b *Bus) Sent() []can.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]can.Frame, len(b.sent))
	copy(out, b.sent)
	return out
}

// Reset clears the sent frame record.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}
