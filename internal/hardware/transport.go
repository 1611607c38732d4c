package hardware

import "time"

// 已知的USB设备标识，打开时按顺序尝试
var KnownDeviceIDs = []DeviceID{
	{VendorID: 0x0FFF, ProductID: 0x0002}, // 旧款
	{VendorID: 0x16D0, ProductID: 0x050B}, // 现款
}

// DeviceID USB厂商/产品标识
type DeviceID struct {
	VendorID  uint16
	ProductID uint16
}

// DeviceTransport 设备传输层接口。
// 协议引擎不实现USB栈：枚举、打开、原始读写由适配器提供。
// 通道为半双工，引擎保证任意时刻只有一次往返在途。
type DeviceTransport interface {
	// Open 打开设备句柄
	Open() error
	// Close 关闭设备句柄
	Close() error
	// IsConnected 设备是否在位
	IsConnected() bool
	// IsOpen 句柄是否已打开
	IsOpen() bool
	// Write 发送一个下行帧
	Write(data []byte, timeout time.Duration) error
	// Read 读取一个上行包（首字节为report id）
	Read(timeout time.Duration) ([]byte, error)
	// ProductCaption 读取设备产品名文本（用于版本识别）
	ProductCaption() (string, error)
}
