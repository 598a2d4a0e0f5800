package protocol

// CRC algorithm constants.
const (
	// CRC16Polynomial is the CRC-16-CCITT polynomial (0x1021)
	CRC16Polynomial = 0x1021

	// CRC16InitialValue is the initial value used by SMP console framing
	CRC16InitialValue = 0x0000

	// CRC16HighBitMask is the high bit mask for CRC-16 calculations
	CRC16HighBitMask = 0x8000

	// BitsPerByte is the number of bits per byte
	BitsPerByte = 8
)

// CRC16 computes the CRC-16-CCITT (XMODEM) checksum of data.
// SMP over a console appends it to every packet.
//
// CRC-16-CCITT parameters:
//   - Polynomial: CRC16Polynomial
//   - Initial value: CRC16InitialValue
//   - No final XOR
func CRC16(data []byte) uint16 {
	return UpdateCRC16(CRC16InitialValue, data)
}

// UpdateCRC16 continues a CRC-16-CCITT computation over data.
func UpdateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << BitsPerByte
		for i := 0; i < BitsPerByte; i++ {
			if crc&CRC16HighBitMask != 0 {
				crc = (crc << 1) ^ CRC16Polynomial
			} else {
				crc = crc << 1
			}
		}
	}

	return crc
}
