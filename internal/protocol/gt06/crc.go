package gt06

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_X_25)

// Checksum computes the CRC16/X.25 used for GT06 frame integrity
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
