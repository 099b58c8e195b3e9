package can_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	can "github.com/openimu/epsoncan/pkg/can"
	"github.com/openimu/epsoncan/pkg/can/loopback"
)

func TestNewBusRegistry(t *testing.T) {
	bus, err := can.NewBus("loopback", "")
	require.Nil(t, err)
	assert.IsType(t, &loopback.Bus{}, bus)

	_, err = can.NewBus("does-not-exist", "can0")
	assert.NotNil(t, err)
}
