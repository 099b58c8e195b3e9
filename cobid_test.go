package epsoncan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCOBIDs(t *testing.T) {
	ids, err := DeriveCOBIDs(1, 2)
	assert.Nil(t, err)
	assert.EqualValues(t, 0x000, ids.NMT)
	assert.EqualValues(t, 0x080, ids.SYNC)
	assert.EqualValues(t, 0x100, ids.TIME)
	assert.EqualValues(t, 0x181, ids.TPDO[0])
	assert.EqualValues(t, 0x281, ids.TPDO[1])
	assert.EqualValues(t, 0x381, ids.TPDO[2])
	assert.EqualValues(t, 0x481, ids.TPDO[3])
	assert.EqualValues(t, 0x581, ids.RSDO)
	assert.EqualValues(t, 0x601, ids.TSDO)
	assert.Equal(t, []uint32{0x701, 0x702}, ids.Heartbeat)
}

func TestDeriveCOBIDsDistinct(t *testing.T) {
	ids, err := DeriveCOBIDs(5, 8)
	assert.Nil(t, err)
	all := []uint32{ids.NMT, ids.SYNC, ids.TIME, ids.RSDO, ids.TSDO}
	all = append(all, ids.TPDO[:]...)
	all = append(all, ids.Heartbeat...)
	seen := make(map[uint32]bool)
	for _, id := range all {
		assert.False(t, seen[id], "identifier x%x derived twice", id)
		seen[id] = true
	}
}

func TestDeriveCOBIDsInvalid(t *testing.T) {
	_, err := DeriveCOBIDs(0, 1)
	assert.Equal(t, ErrInvalidNodeId, err)
	_, err = DeriveCOBIDs(128, 1)
	assert.Equal(t, ErrInvalidNodeId, err)
	_, err = DeriveCOBIDs(1, 0)
	assert.Equal(t, ErrInvalidNodeCount, err)
	_, err = DeriveCOBIDs(1, 9)
	assert.Equal(t, ErrInvalidNodeCount, err)
}

func TestCOBIDSetLookups(t *testing.T) {
	ids, _ := DeriveCOBIDs(3, 2)
	assert.Equal(t, 1, ids.TPDONumber(0x183))
	assert.Equal(t, 4, ids.TPDONumber(0x483))
	assert.Equal(t, 0, ids.TPDONumber(0x184))
	assert.True(t, ids.IsHeartbeat(0x701))
	assert.True(t, ids.IsHeartbeat(0x702))
	assert.False(t, ids.IsHeartbeat(0x703))
	assert.EqualValues(t, 0x703, ids.PrimaryHeartbeat())
}
