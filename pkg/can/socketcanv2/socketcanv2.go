package socketcanv2

import (
	"context"
	"net"
	"sync"

	einride "go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	can "github.com/openimu/epsoncan/pkg/can"
)

// Alternative socketcan backend built on go.einride.tech/can.
// Unlike the brutella based backend this one supports clean cancellation
// through a context and does not require the channel to stay up between
// Connect and Subscribe.

func init() {
	can.RegisterInterface("socketcanv2", NewSocketCanBus)
}

type SocketcanBus struct {
	channel    string
	conn       net.Conn
	tx         *socketcan.Transmitter
	rx         *socketcan.Receiver
	rxCallback can.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewSocketCanBus(channel string) (can.Bus, error) {
	return &SocketcanBus{channel: channel}, nil
}

// "Connect" implementation of Bus interface
func (bus *SocketcanBus) Connect(...any) error {
	conn, err := socketcan.DialContext(context.Background(), "can", bus.channel)
	if err != nil {
		return err
	}
	bus.conn = conn
	bus.tx = socketcan.NewTransmitter(conn)
	bus.rx = socketcan.NewReceiver(conn)
	return nil
}

// "Disconnect" implementation of Bus interface
func (bus *SocketcanBus) Disconnect() error {
	if bus.cancel != nil {
		bus.cancel()
	}
	if bus.conn == nil {
		return nil
	}
	err := bus.conn.Close()
	bus.wg.Wait()
	return err
}

// "Send" implementation of Bus interface
func (bus *SocketcanBus) Send(frame can.Frame) error {
	einrideFrame := einride.Frame{
		ID:         frame.ID & can.CanSffMask,
		Length:     frame.DLC,
		IsRemote:   frame.ID&can.CanRtrFlag != 0,
		IsExtended: false,
	}
	copy(einrideFrame.Data[:], frame.Data[:])
	return bus.tx.TransmitFrame(context.Background(), einrideFrame)
}

// "Subscribe" implementation of Bus interface
// Spawns a receive goroutine feeding the listener in arrival order
func (bus *SocketcanBus) Subscribe(rxCallback can.FrameListener) error {
	bus.rxCallback = rxCallback
	ctx, cancel := context.WithCancel(context.Background())
	bus.cancel = cancel
	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for bus.rx.Receive() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			einrideFrame := bus.rx.Frame()
			frame := can.Frame{ID: einrideFrame.ID, DLC: einrideFrame.Length}
			copy(frame.Data[:], einrideFrame.Data[:])
			bus.rxCallback.Handle(frame)
		}
	}()
	return nil
}
