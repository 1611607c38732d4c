package hardware

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cashwork/coin-scale/internal/logger"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// 轮询粒度：tarm/serial的ReadTimeout在打开时固定，
// 用短的底层超时循环凑出每次调用的超时。
const serialPollTimeout = 50 * time.Millisecond

// serialPort 串口句柄。tarm的*serial.Port实现此接口
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// SerialTransport RS-232传输适配器（USB转串口的秤，或经适配线连接）。
// 串口侧没有HID报告结构：上行是裸的6字节载荷，读取后补一个report id
// 字节，使协议引擎两种传输下的拆包逻辑一致。
type SerialTransport struct {
	mu      sync.Mutex
	logger  *zap.Logger
	device  string
	baud    int
	caption string
	port    serialPort
}

// NewSerialTransport 创建串口传输适配器。
// caption用于版本识别：串口侧拿不到USB产品描述，由配置提供。
func NewSerialTransport(device string, baud int, caption string) *SerialTransport {
	return &SerialTransport{
		logger:  logger.GetModuleLogger("serial"),
		device:  device,
		baud:    baud,
		caption: caption,
	}
}

// Open 打开串口
func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        t.device,
		Baud:        t.baud,
		ReadTimeout: serialPollTimeout,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", t.device, err)
	}
	t.port = port

	t.logger.Info("Serial port opened",
		zap.String("device", t.device),
		zap.Int("baud", t.baud))
	return nil
}

// Close 关闭串口
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

// IsConnected 检查设备节点是否存在
func (t *SerialTransport) IsConnected() bool {
	_, err := os.Stat(t.device)
	return err == nil
}

// IsOpen 串口是否已打开
func (t *SerialTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Write 发送一个下行帧
func (t *SerialTransport) Write(data []byte, timeout time.Duration) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return fmt.Errorf("serial port not open")
	}

	n, err := port.Write(data)
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("serial write short: %d of %d bytes", n, len(data))
	}
	return nil
}

// Read 读取一个上行包。串口流没有报文边界，按固定载荷长度聚包，
// 读满后在最前面补0x00凑成与HID一致的报告布局。
func (t *SerialTransport) Read(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	payload := make([]byte, 0, ResponseLen)
	buf := make([]byte, ResponseLen)
	deadline := time.Now().Add(timeout)

	for len(payload) < ResponseLen {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("serial read timeout after %v (%d of %d bytes)",
				timeout, len(payload), ResponseLen)
		}
		n, err := port.Read(buf)
		if err != nil {
			// 底层超时窗口内无数据时os.File把0字节读取报告为io.EOF，
			// 这是轮询的正常空转，继续等到调用方的截止时间
			if errors.Is(err, io.EOF) {
				continue
			}
			return nil, fmt.Errorf("serial read: %w", err)
		}
		payload = append(payload, buf[:n]...)
	}

	report := make([]byte, 0, ResponseLen+1)
	report = append(report, 0x00)
	report = append(report, payload[:ResponseLen]...)
	return report, nil
}

// ProductCaption 返回配置的产品描述
func (t *SerialTransport) ProductCaption() (string, error) {
	if t.caption == "" {
		return "", fmt.Errorf("serial transport requires configured product caption")
	}
	return t.caption, nil
}
