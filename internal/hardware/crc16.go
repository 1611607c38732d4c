package hardware

// CRC-16/XMODEM：多项式0x1021，初始值0x0000，无输入/输出反射，高位在前。
// 固件对每个下行帧的前6个字节计算该校验和。

var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		a := uint16(i) << 8
		var temp uint16
		for j := 0; j < 8; j++ {
			if (temp^a)&0x8000 != 0 {
				temp = (temp << 1) ^ 0x1021
			} else {
				temp <<= 1
			}
			a <<= 1
		}
		crc16Table[i] = temp
	}
}

// ChecksumCRC16 计算CRC-16/XMODEM校验和（查表实现）
func ChecksumCRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}
