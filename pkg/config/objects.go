package config

// Object dictionary entries the sequencer touches. The manufacturer
// section (0x2000, 0x2001, 0x2005, 0x3000) follows the Epson object
// layout, the rest is standard CiA 301.
const (
	indexDeviceName      uint16 = 0x1008
	indexDeviceNameHigh  uint16 = 0x1009
	indexSoftwareVersion uint16 = 0x100A
	indexStoreParameters uint16 = 0x1010
	indexLoadParameters  uint16 = 0x1011
	indexTPDO1Comm       uint16 = 0x1800
	indexBusParameters   uint16 = 0x2000
	indexSampleInterval  uint16 = 0x2001
	indexApplySettings   uint16 = 0x2005
	indexSerialNumber    uint16 = 0x3000
	indexFilterSelect    uint16 = 0x61A1

	subCANId        uint8 = 0x01
	subBitrate      uint8 = 0x02
	subTransmitType uint8 = 0x02
	subSerialGate   uint8 = 0x7E

	// ASCII signatures for the store/restore objects
	signatureSave uint32 = 0x65766173
	signatureLoad uint32 = 0x64616F6C

	// 0x1800:2 transmission type selectors
	modeSyncDriven  uint32 = 0x01
	modeEventDriven uint32 = 0xFE

	// bit 31 of 0x180n:1 disables the mapped TPDO
	pdoDisabledBit uint32 = 0x80000000
)

// serialSubCount is how many 4-character words make up the serial
// number behind the 0x3000 gate.
const serialSubCount = 4

// decodeASCII unpacks a little-endian object value into the 4 ASCII
// characters it carries, dropping NUL padding.
func decodeASCII(value uint32) string {
	raw := []byte{
		byte(value),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	}
	out := raw[:0]
	for _, c := range raw {
		if c == 0 {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
