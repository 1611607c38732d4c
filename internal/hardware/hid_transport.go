package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/cashwork/coin-scale/internal/errors"
	"github.com/cashwork/coin-scale/internal/logger"
	"github.com/karalabe/hid"
	"go.uber.org/zap"
)

// HID输入报告的最大长度。设备实际只用7字节，按HID规范留足一个报告。
const hidReportBufLen = 64

// HIDTransport USB HID传输适配器。
// 底层Read是阻塞调用，打开后由独立的读取泵把输入报告搬进通道，
// Read在通道上带超时等待。
type HIDTransport struct {
	mu     sync.Mutex
	logger *zap.Logger
	info   hid.DeviceInfo
	device *hid.Device

	reports chan []byte
	done    chan struct{}
	readErr error
}

// EnumerateScales 枚举在位的已知秤设备，按KnownDeviceIDs顺序
func EnumerateScales() []hid.DeviceInfo {
	var found []hid.DeviceInfo
	for _, id := range KnownDeviceIDs {
		found = append(found, hid.Enumerate(id.VendorID, id.ProductID)...)
	}
	return found
}

// NewHIDTransport 用枚举到的设备描述创建传输适配器
func NewHIDTransport(info hid.DeviceInfo) *HIDTransport {
	return &HIDTransport{
		logger: logger.GetModuleLogger("hid"),
		info:   info,
	}
}

// OpenFirstScale 找到第一台在位的秤并返回其传输适配器（不打开句柄）
func OpenFirstScale() (*HIDTransport, error) {
	infos := EnumerateScales()
	if len(infos) == 0 {
		return nil, errors.New(errors.ErrDeviceNotFound)
	}
	return NewHIDTransport(infos[0]), nil
}

// Open 打开HID句柄并启动读取泵
func (t *HIDTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device != nil {
		return nil
	}
	device, err := t.info.Open()
	if err != nil {
		return fmt.Errorf("open hid device %s: %w", t.info.Path, err)
	}
	t.device = device
	t.reports = make(chan []byte, 4)
	t.done = make(chan struct{})
	t.readErr = nil
	go t.readPump(device, t.reports, t.done)

	t.logger.Info("HID device opened",
		zap.String("path", t.info.Path),
		zap.String("product", t.info.Product))
	return nil
}

// readPump 持续读取输入报告。关闭句柄会让阻塞的Read返回错误，泵随之退出。
func (t *HIDTransport) readPump(device *hid.Device, reports chan<- []byte, done <-chan struct{}) {
	for {
		buf := make([]byte, hidReportBufLen)
		n, err := device.Read(buf)
		if err != nil {
			t.mu.Lock()
			t.readErr = err
			t.mu.Unlock()
			close(reports)
			return
		}
		select {
		case reports <- buf[:n]:
		case <-done:
			return
		}
	}
}

// Close 关闭HID句柄
func (t *HIDTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device == nil {
		return nil
	}
	close(t.done)
	err := t.device.Close()
	t.device = nil
	if err != nil {
		return fmt.Errorf("close hid device: %w", err)
	}
	return nil
}

// IsConnected 重新枚举确认设备仍然在位
func (t *HIDTransport) IsConnected() bool {
	for _, info := range hid.Enumerate(t.info.VendorID, t.info.ProductID) {
		if info.Path == t.info.Path {
			return true
		}
	}
	return false
}

// IsOpen 句柄是否已打开
func (t *HIDTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device != nil
}

// Write 发送一个输出报告。设备不使用编号报告，首字节补0x00。
func (t *HIDTransport) Write(data []byte, timeout time.Duration) error {
	t.mu.Lock()
	device := t.device
	t.mu.Unlock()
	if device == nil {
		return fmt.Errorf("hid device not open")
	}

	report := make([]byte, 0, len(data)+1)
	report = append(report, 0x00)
	report = append(report, data...)

	n, err := device.Write(report)
	if err != nil {
		return fmt.Errorf("hid write: %w", err)
	}
	if n != len(report) {
		return fmt.Errorf("hid write short: %d of %d bytes", n, len(report))
	}
	return nil
}

// Read 等待下一个输入报告，超时返回错误
func (t *HIDTransport) Read(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	reports := t.reports
	t.mu.Unlock()
	if reports == nil {
		return nil, fmt.Errorf("hid device not open")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case report, ok := <-reports:
		if !ok {
			t.mu.Lock()
			err := t.readErr
			t.mu.Unlock()
			return nil, fmt.Errorf("hid read: %w", err)
		}
		return report, nil
	case <-timer.C:
		return nil, fmt.Errorf("hid read timeout after %v", timeout)
	}
}

// ProductCaption 返回USB产品描述字符串
func (t *HIDTransport) ProductCaption() (string, error) {
	if t.info.Product == "" {
		return "", fmt.Errorf("device reports empty product string")
	}
	return t.info.Product, nil
}
