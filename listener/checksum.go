package listener

// Fletcher16 - Fletcher-16 sum of data, (sum2 << 8) | sum1
func Fletcher16(data []byte) uint16 {
	sum1, sum2 := uint16(0), uint16(0)
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return (sum2 << 8) | sum1
}

// CheckBytes - The two check bytes appended to a packet whose Fletcher-16
// sum is sum
func CheckBytes(sum uint16) (byte, byte) {
	low := uint16(sum & 0xFF)
	high := uint16(sum >> 8)
	c0 := 255 - (low+high)%255
	c1 := 255 - (low+c0)%255
	return byte(c0), byte(c1)
}
