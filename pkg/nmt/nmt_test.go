package nmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	epsoncan "github.com/openimu/epsoncan"
	"github.com/openimu/epsoncan/pkg/can/loopback"
)

func TestNMTSend(t *testing.T) {
	bus := loopback.New()
	transport, err := epsoncan.NewTransport(bus)
	require.Nil(t, err)
	defer transport.Close()
	ids, _ := epsoncan.DeriveCOBIDs(1, 1)
	controller := NewController(transport, ids)

	require.Nil(t, controller.Send(CommandEnterPreOperational, 1))
	require.Nil(t, controller.Broadcast(CommandEnterOperational))

	sent := bus.Sent()
	require.Len(t, sent, 2)
	assert.EqualValues(t, 0x000, sent[0].ID)
	assert.EqualValues(t, 2, sent[0].DLC)
	assert.Equal(t, [8]byte{0x80, 0x01}, sent[0].Data)
	assert.Equal(t, [8]byte{0x01, 0x00}, sent[1].Data)
}
