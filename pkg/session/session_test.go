package session

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	epsoncan "github.com/openimu/epsoncan"
	can "github.com/openimu/epsoncan/pkg/can"
	"github.com/openimu/epsoncan/pkg/can/loopback"
	"github.com/openimu/epsoncan/pkg/config"
)

// sdoResponder answers every SDO request from a fixed object map, just
// enough device behavior to get through configuration.
func sdoResponder(bus *loopback.Bus, ids *epsoncan.COBIDSet, objects map[uint32]uint32) {
	key := func(index uint16, subindex uint8) uint32 {
		return uint32(index)<<8 | uint32(subindex)
	}
	bus.OnSend = func(frame can.Frame) {
		if frame.ID != ids.TSDO {
			return
		}
		index := binary.LittleEndian.Uint16(frame.Data[1:3])
		subindex := frame.Data[3]
		reply := can.Frame{ID: ids.RSDO, DLC: 8}
		copy(reply.Data[1:4], frame.Data[1:4])
		if frame.Data[0] == 0x40 {
			reply.Data[0] = 0x43
			binary.LittleEndian.PutUint32(reply.Data[4:8], objects[key(index, subindex)])
		} else {
			objects[key(index, subindex)] = binary.LittleEndian.Uint32(frame.Data[4:8])
			reply.Data[0] = 0x60
			copy(reply.Data[4:8], frame.Data[4:8])
		}
		bus.Inject(reply)
	}
}

func ascii(s string) uint32 {
	var v uint32
	for i := 0; i < len(s) && i < 4; i++ {
		v |= uint32(s[i]) << (8 * i)
	}
	return v
}

type collectWriter struct {
	samples []*epsoncan.Sample
}

func (writer *collectWriter) Write(sample *epsoncan.Sample) error {
	writer.samples = append(writer.samples, sample)
	return nil
}

func fastOptions() Options {
	settle := time.Millisecond
	return Options{
		Options: config.Options{
			OutputRateHz: 1000,
			PreOpSettle:  settle,
			TimeSettle:   settle,
			FilterSettle: settle,
			ApplySettle:  settle,
			SaveSettle:   settle,
			StartSettle:  settle,
		},
	}
}

func createConfiguredSession(t *testing.T) (*Session, *loopback.Bus, *config.Result) {
	bus := loopback.New()
	sess, err := NewSession(bus, 1, 1)
	require.Nil(t, err)
	t.Cleanup(func() { sess.Shutdown() })
	sess.SetSDOTimeout(50 * time.Millisecond)

	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	sdoResponder(bus, ids, map[uint32]uint32{
		uint32(0x1008)<<8 | 0: ascii("G570"),
		uint32(0x1009)<<8 | 0: ascii("PR20"),
		uint32(0x100A)<<8 | 0: ascii("1.00"),
		uint32(0x1800)<<8 | 1: 0x181,
		uint32(0x1801)<<8 | 1: 0x281,
		uint32(0x1802)<<8 | 1: 0x381,
		uint32(0x1803)<<8 | 1: 0x80000481,
	})

	result, err := sess.Configure(context.Background(), fastOptions())
	require.Nil(t, err)
	return sess, bus, result
}

func TestSessionRunMaxSamples(t *testing.T) {
	sess, bus, result := createConfiguredSession(t)
	require.EqualValues(t, 0x07, result.TargetMask)

	// Queue three complete cycles before consuming
	for cycle := 0; cycle < 3; cycle++ {
		tpdo1 := can.Frame{ID: 0x181, DLC: 8}
		binary.LittleEndian.PutUint16(tpdo1.Data[0:2], uint16(100*(cycle+1)))
		binary.LittleEndian.PutUint16(tpdo1.Data[6:8], uint16(cycle))
		tpdo2 := can.Frame{ID: 0x281, DLC: 8}
		binary.LittleEndian.PutUint16(tpdo2.Data[0:2], 10)
		tpdo3 := can.Frame{ID: 0x381, DLC: 8}
		binary.LittleEndian.PutUint16(tpdo3.Data[0:2], 14000)
		binary.LittleEndian.PutUint32(tpdo3.Data[2:6], 160)
		bus.Inject(tpdo1)
		bus.Inject(tpdo2)
		bus.Inject(tpdo3)
	}

	writer := &collectWriter{}
	opts := fastOptions()
	opts.MaxSamples = 3
	require.Nil(t, sess.Run(context.Background(), writer, opts))

	require.Len(t, writer.samples, 3)
	for i, sample := range writer.samples {
		assert.EqualValues(t, i, sample.Index)
		assert.EqualValues(t, i, sample.Counter)
		assert.InDelta(t, float64(100*(i+1))*0.0151515, sample.Angular[0], 1e-9)
	}
}

func TestSessionRunCancelIsGraceful(t *testing.T) {
	sess, _, _ := createConfiguredSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sess.Run(ctx, &collectWriter{}, fastOptions())
	assert.Nil(t, err)
}

func TestSessionRunRequiresConfigure(t *testing.T) {
	bus := loopback.New()
	sess, err := NewSession(bus, 1, 1)
	require.Nil(t, err)
	defer sess.Shutdown()

	err = sess.Run(context.Background(), &collectWriter{}, fastOptions())
	assert.NotNil(t, err)
}

func TestSessionShutdown(t *testing.T) {
	sess, bus, _ := createConfiguredSession(t)

	require.Nil(t, sess.Shutdown())
	// Idempotent
	require.Nil(t, sess.Shutdown())

	// The node is placed pre-operational on the way out
	sent := bus.Sent()
	last := sent[len(sent)-1]
	assert.EqualValues(t, 0x000, last.ID)
	assert.Equal(t, uint8(0x80), last.Data[0])

	err := sess.Transport().Send(epsoncan.NewFrame(0x080, 0, 0))
	assert.Equal(t, epsoncan.ErrTransportClosed, err)
}

func TestSessionInvalidNode(t *testing.T) {
	_, err := NewSession(loopback.New(), 0, 1)
	assert.Equal(t, epsoncan.ErrInvalidNodeId, err)
}
