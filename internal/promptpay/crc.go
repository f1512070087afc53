package promptpay

// CRC-16/CCITT-FALSE as required by the EMV QR specification:
// polynomial 0x1021, initial value 0xFFFF, no reflection, no final XOR.
// The checksum covers the payload up to and including the "6304" Tag 63
// header; the four uppercase hex digits are then appended.
func crc16CCITT(data []byte) uint16 {
	const polynomial = 0x1021
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
