package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/can/loopback"
)

func TestProducer(t *testing.T) {
	bus := loopback.New()
	transport, err := epsoncan.NewTransport(bus)
	require.Nil(t, err)
	defer transport.Close()
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	producer := NewProducer(transport, ids)

	assert.NotNil(t, producer.Start(0))
	assert.False(t, producer.Running())

	require.Nil(t, producer.Start(200))
	assert.True(t, producer.Running())
	assert.NotNil(t, producer.Start(200))

	time.Sleep(30 * time.Millisecond)
	producer.Stop()
	assert.False(t, producer.Running())
	producer.Stop() // twice is fine

	sent := bus.Sent()
	assert.Greater(t, len(sent), 2)
	for _, frame := range sent {
		assert.EqualValues(t, 0x080, frame.ID)
		assert.EqualValues(t, 0, frame.DLC)
	}
}
