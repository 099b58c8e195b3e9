package epsoncan

// CANopen function code bases, CiA 301 pre-defined connection set.
const (
	BaseNMT       uint32 = 0x000
	BaseSYNC      uint32 = 0x080
	BaseTIME      uint32 = 0x100
	BaseTPDO1     uint32 = 0x180
	BaseTPDO2     uint32 = 0x280
	BaseTPDO3     uint32 = 0x380
	BaseTPDO4     uint32 = 0x480
	BaseRSDO      uint32 = 0x580 // server -> client
	BaseTSDO      uint32 = 0x600 // client -> server
	BaseHeartbeat uint32 = 0x700
)

const (
	MaxNodeId    uint8 = 127
	MaxNodeCount uint8 = 8
)

// COBIDSet holds every 11-bit identifier used during a session with one
// sensor node. Derived once from the node id and never mutated.
type COBIDSet struct {
	NodeId    uint8
	NMT       uint32
	SYNC      uint32
	TIME      uint32
	TPDO      [4]uint32
	RSDO      uint32
	TSDO      uint32
	Heartbeat []uint32 // Heartbeat[i] belongs to node id i+1
}

// DeriveCOBIDs computes the identifier set for a node and the heartbeat
// identifiers of nodeCount monitored nodes.
func DeriveCOBIDs(nodeId uint8, nodeCount uint8) (*COBIDSet, error) {
	if nodeId < 1 || nodeId > MaxNodeId {
		return nil, ErrInvalidNodeId
	}
	if nodeCount < 1 || nodeCount > MaxNodeCount {
		return nil, ErrInvalidNodeCount
	}
	set := &COBIDSet{
		NodeId: nodeId,
		NMT:    BaseNMT,
		SYNC:   BaseSYNC,
		TIME:   BaseTIME,
		TPDO: [4]uint32{
			BaseTPDO1 + uint32(nodeId),
			BaseTPDO2 + uint32(nodeId),
			BaseTPDO3 + uint32(nodeId),
			BaseTPDO4 + uint32(nodeId),
		},
		RSDO: BaseRSDO + uint32(nodeId),
		TSDO: BaseTSDO + uint32(nodeId),
	}
	for i := uint8(1); i <= nodeCount; i++ {
		set.Heartbeat = append(set.Heartbeat, BaseHeartbeat+uint32(i))
	}
	return set, nil
}

// TPDONumber returns 1..4 if id is one of the node's TPDO identifiers,
// 0 otherwise.
func (set *COBIDSet) TPDONumber(id uint32) int {
	for i, tpdoId := range set.TPDO {
		if id == tpdoId {
			return i + 1
		}
	}
	return 0
}

// IsHeartbeat reports whether id belongs to a monitored heartbeat node.
func (set *COBIDSet) IsHeartbeat(id uint32) bool {
	for _, hbId := range set.Heartbeat {
		if id == hbId {
			return true
		}
	}
	return false
}

// PrimaryHeartbeat is the heartbeat identifier of the sensor node itself.
func (set *COBIDSet) PrimaryHeartbeat() uint32 {
	return BaseHeartbeat + uint32(set.NodeId)
}
