package hardware

import (
	"sync"
	"time"

	"github.com/cashwork/coin-scale/internal/errors"
	"github.com/cashwork/coin-scale/internal/logger"
	"go.uber.org/zap"
)

// ScaleController 点钞秤协议引擎。
// 持有传输层句柄与打开时识别的协议版本；所有权威状态都在设备固件里，
// 引擎本地只缓存协议版本。互斥锁保证半双工通道上任意时刻只有一次
// 命令/响应往返在途；跨多个goroutine使用同一连接需要调用方自行串行化
// 更高层的操作序列。
type ScaleController struct {
	transport DeviceTransport
	mu        sync.Mutex // 串行化单次帧往返
	version   ProtocolVersion
	opened    bool
	logger    *zap.Logger

	defaultTimeout time.Duration
	probeTimeout   time.Duration
}

// ControllerOption 控制器选项
type ControllerOption func(*ScaleController)

// WithDefaultTimeout 覆盖默认命令超时（默认10s）
func WithDefaultTimeout(d time.Duration) ControllerOption {
	return func(c *ScaleController) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithProbeTimeout 覆盖卷币探测超时（默认1s）
func WithProbeTimeout(d time.Duration) ControllerOption {
	return func(c *ScaleController) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// NewScaleController 创建控制器
func NewScaleController(transport DeviceTransport, opts ...ControllerOption) *ScaleController {
	c := &ScaleController{
		transport:      transport,
		logger:         logger.GetModuleLogger("device"),
		defaultTimeout: DefaultTimeout,
		probeTimeout:   CoinRollProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open 打开设备并识别协议版本
func (c *ScaleController) Open(timeout time.Duration) error {
	timeout = c.effectiveTimeout(timeout)

	if !c.transport.IsConnected() {
		return errors.New(errors.ErrNotConnected)
	}
	if err := c.transport.Open(); err != nil {
		return errors.Wrap(err, errors.ErrNotOpen, "打开设备失败")
	}
	c.opened = true

	version, err := c.detectVersion(timeout)
	if err != nil {
		c.opened = false
		c.transport.Close()
		return err
	}
	c.version = version

	c.logger.Info("Scale opened", zap.Int("protocol_version", int(version)))
	return nil
}

// Close 关闭会话并释放设备句柄。
// 关闭会话命令尽力而为：设备可能已经拔出。
func (c *ScaleController) Close() error {
	if !c.opened {
		return nil
	}

	if _, err := c.exchange(BuildCommand(CmdCloseSession), c.defaultTimeout); err != nil {
		c.logger.Warn("Close session command failed", zap.Error(err))
	}

	c.opened = false
	c.version = VersionUnknown
	if err := c.transport.Close(); err != nil {
		return errors.Wrap(err, errors.ErrTransportWrite, "关闭设备失败")
	}

	c.logger.Info("Scale closed")
	return nil
}

// IsOpen 设备是否已打开
func (c *ScaleController) IsOpen() bool {
	return c.opened
}

// Version 返回打开时识别的协议版本
func (c *ScaleController) Version() ProtocolVersion {
	return c.version
}

// effectiveTimeout 超时为0时使用默认值
func (c *ScaleController) effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return c.defaultTimeout
	}
	return timeout
}

// checkReady 每个触达传输层的操作前的前置检查，失败时不做任何I/O
func (c *ScaleController) checkReady() error {
	if !c.transport.IsConnected() {
		return errors.New(errors.ErrNotConnected)
	}
	if !c.opened {
		return errors.New(errors.ErrNotOpen)
	}
	return nil
}

// exchange 执行一次完整的半双工往返：加帧、发送、读取、剥离report id。
// 传输失败原样上抛，引擎不做重试。
func (c *ScaleController) exchange(cmd [CommandLen]byte, timeout time.Duration) ([ResponseLen]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resp [ResponseLen]byte
	frame := FrameCommand(cmd)

	if err := c.transport.Write(frame[:], timeout); err != nil {
		wrapped := errors.Wrap(err, errors.ErrTransportWrite)
		logger.LogFrameExchange(cmd[0], frame[:], nil, wrapped)
		return resp, wrapped
	}

	raw, err := c.transport.Read(timeout)
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrTransportRead)
		logger.LogFrameExchange(cmd[0], frame[:], raw, wrapped)
		return resp, wrapped
	}

	resp, err = UnwrapResponse(raw)
	if err != nil {
		logger.LogFrameExchange(cmd[0], frame[:], raw, err)
		return resp, err
	}

	logger.LogFrameExchange(cmd[0], frame[:], raw, nil)
	return resp, nil
}

// exchangeSet 执行一次写操作：主写命令帧成功后立即发送出厂影子存储帧。
// 两帧之间没有原子性保证；第一帧成功而第二帧失败时设备处于部分写入状态，
// 以错误形式上抛，不重试。
func (c *ScaleController) exchangeSet(op byte, params []byte, timeout time.Duration) error {
	if _, err := c.exchange(BuildCommand(op, params...), timeout); err != nil {
		return err
	}

	persistOp, ok := persistOpcodes[op]
	if !ok {
		return nil
	}
	if _, err := c.exchange(BuildCommand(persistOp, params...), timeout); err != nil {
		// Wrap会保留已有的错误码，这里必须以部分写入码上抛
		return errors.Newf(errors.ErrPartialWrite,
			"主写入已生效但未写入出厂影子存储: %v", err).WithCause(err)
	}
	return nil
}

// ============= 响应字段解码 =============

// decodeInt32 解码32位整数字段：高字节在响应偏移2，依次到偏移5
func decodeInt32(resp [ResponseLen]byte) int32 {
	return int32(uint32(resp[2])<<24 | uint32(resp[3])<<16 | uint32(resp[4])<<8 | uint32(resp[5]))
}

// decodeWeight24 解码24位重量字段。高字节在响应偏移3，其最高位是与
// 现金类型共用的标志位，参与数值前必须清除。四位隐含小数（×0.0001克）。
func decodeWeight24(resp [ResponseLen]byte) float64 {
	top := resp[3]
	if top >= 0x80 {
		top -= 0x80
	}
	raw := uint32(top)<<16 | uint32(resp[4])<<8 | uint32(resp[5])
	return float64(raw) * 0.0001
}

// decodeCashType 从重量响应的偏移3解码现金类型：标志位置位为纸币，否则为硬币
func decodeCashType(resp [ResponseLen]byte) CashType {
	if int(resp[3])-128 >= 0 {
		return CashTypeBanknote
	}
	return CashTypeCoin
}
