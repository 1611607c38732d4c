package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/cashwork/coin-scale/internal/logger"
	"go.uber.org/zap"
)

// MockTransport 模拟设备固件（用于测试与无硬件运行）。
// 在传输层边界上完整模拟一台秤：校验下行帧的CRC，维护货币/面额/卷币
// 存储，按协议代际生成上行包。所有下行帧都会被记录，测试可以断言
// 帧序列（例如写操作必须紧跟出厂影子帧）。
type MockTransport struct {
	mu        sync.Mutex
	logger    *zap.Logger
	version   ProtocolVersion
	connected bool
	open      bool

	// 待读取的上行包（report id + 6字节载荷）
	pending []byte
	// 下一次Read模拟超时（卷币探测静默）
	pendingSilent bool

	// 模拟存储
	currentSlot  byte
	currencies   [5][3][2]byte // [槽位][字符序号][低/高段码]
	denomValues  [5][64]int32
	denomWeights [5][64]uint32 // 含现金类型标志位的24位原始值
	denomTexts   [5][64][4][2]byte
	denomQty     [64]int32
	rollQty      [64]int32
	rollData     [64][4]byte // 卷数 + 3字节卷纸重量
	rollStorage  bool        // 第4代起才有独立卷币存储
	flags        map[byte]byte
	profile      [8][2]byte
	userID       uint32
	measuredRaw  int32
	floatRaw     int32

	// 出厂影子存储
	shadowValues  [5][64]int32
	shadowWeights [5][64]uint32

	// 记录的下行帧
	frames [][]byte
}

// 各代际的握手响应与产品名
var mockIdentities = map[ProtocolVersion]struct {
	handshake string
	caption   string
}{
	Version1: {"\x00\x00\x002", "Coin Scale"},
	Version2: {"0002", "iCount"},
	Version3: {"0002", "RS 1000"},
	Version4: {"0002", "Coin Scale Pro"},
	Version5: {"0003", "Coin Scale Pro"},
	Version6: {"0004", "Coin Scale Pro"},
}

// NewMockTransport 创建指定协议代际的模拟设备
func NewMockTransport(version ProtocolVersion) *MockTransport {
	m := &MockTransport{
		logger:      logger.GetModuleLogger("mock"),
		version:     version,
		connected:   true,
		currentSlot: 1,
		rollStorage: version >= Version4,
		flags:       make(map[byte]byte),
	}
	return m
}

// SetConnected 模拟插拔
func (m *MockTransport) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SeedCurrency 预置一个货币槽位的名称
func (m *MockTransport) SeedCurrency(slot byte, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < CurrencyNameLen && i < len(name); i++ {
		low, high, err := EncodeSegment(name[i])
		if err != nil {
			continue
		}
		m.currencies[slot][i] = [2]byte{low, high}
	}
}

// SeedDenomination 预置一个面额（数值、重量、计数、现金类型）
func (m *MockTransport) SeedDenomination(slot byte, index byte, value int32, weight float64, qty int32, cashType CashType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw := uint32(weight*10000 + 0.5)
	if cashType == CashTypeBanknote {
		raw |= 0x800000
	}
	m.denomValues[slot][index] = value
	m.denomWeights[slot][index] = raw
	m.denomQty[index] = qty
}

// SeedCoinRollQuantity 预置独立卷币存储的卷数
func (m *MockTransport) SeedCoinRollQuantity(index byte, qty int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollQty[index] = qty
}

// SetCurrentSlot 预置当前货币槽位
func (m *MockTransport) SetCurrentSlot(slot byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentSlot = slot
}

// SetMeasuredWeight 预置称重值（克）
func (m *MockTransport) SetMeasuredWeight(weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.measuredRaw = int32(weight * 10000)
}

// SetFloatRaw 预置浮动设置原始值
func (m *MockTransport) SetFloatRaw(raw int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floatRaw = raw
}

// Frames 返回已记录的下行帧（测试断言用）
func (m *MockTransport) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}

// Opcodes 返回已记录下行帧的命令码序列
func (m *MockTransport) Opcodes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]byte, 0, len(m.frames))
	for _, f := range m.frames {
		ops = append(ops, f[0])
	}
	return ops
}

// ============= DeviceTransport 实现 =============

// Open 打开模拟设备
func (m *MockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("device not present")
	}
	m.open = true
	m.logger.Debug("Mock device opened", zap.Int("version", int(m.version)))
	return nil
}

// Close 关闭模拟设备
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsConnected 设备是否在位
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// IsOpen 句柄是否已打开
func (m *MockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// ProductCaption 返回代际对应的产品名
func (m *MockTransport) ProductCaption() (string, error) {
	id, ok := mockIdentities[m.version]
	if !ok {
		return "", fmt.Errorf("unknown mock version %d", m.version)
	}
	return id.caption, nil
}

// Write 接收一个下行帧：校验CRC，执行命令，生成上行包
func (m *MockTransport) Write(data []byte, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return fmt.Errorf("device not open")
	}
	if len(data) != FrameLen {
		return fmt.Errorf("frame length %d, want %d", len(data), FrameLen)
	}
	crc := ChecksumCRC16(data[:CommandLen])
	if data[6] != byte(crc>>8) || data[7] != byte(crc) {
		return fmt.Errorf("bad frame checksum")
	}

	frame := make([]byte, FrameLen)
	copy(frame, data)
	m.frames = append(m.frames, frame)

	m.execute(data[:CommandLen])
	return nil
}

// Read 返回上一条命令的上行包
func (m *MockTransport) Read(timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, fmt.Errorf("device not open")
	}
	if m.pendingSilent {
		m.pendingSilent = false
		return nil, fmt.Errorf("read timeout after %v", timeout)
	}
	if m.pending == nil {
		return nil, fmt.Errorf("no pending response")
	}
	resp := m.pending
	m.pending = nil
	return resp, nil
}

// ============= 命令执行 =============

// reply 把6字节载荷加上report id排队等待Read
func (m *MockTransport) reply(payload [ResponseLen]byte) {
	pkt := make([]byte, 0, MinReportLen)
	pkt = append(pkt, 0x00)
	pkt = append(pkt, payload[:]...)
	m.pending = pkt
}

// replyInt32 按偏移2..5编码32位整数
func (m *MockTransport) replyInt32(op byte, v int32) {
	m.reply([ResponseLen]byte{op, 0,
		byte(uint32(v) >> 24), byte(uint32(v) >> 16), byte(uint32(v) >> 8), byte(uint32(v))})
}

// replySegment 按偏移1/2编码段码字，第一代字节序相反
func (m *MockTransport) replySegment(op byte, word [2]byte) {
	low, high := word[0], word[1]
	if m.version == Version1 {
		low, high = high, low
	}
	m.reply([ResponseLen]byte{op, low, high, 0, 0, 0})
}

// resolveSlot 槽位0按固件语义指向当前货币
func (m *MockTransport) resolveSlot(slot byte) byte {
	if slot == CurrentCurrency {
		return m.currentSlot
	}
	return slot
}

func (m *MockTransport) execute(cmd []byte) {
	op := cmd[0]
	switch op {
	case CmdProtocolVersion:
		id := mockIdentities[m.version]
		var payload [ResponseLen]byte
		payload[0] = op
		copy(payload[1:5], id.handshake)
		m.reply(payload)

	case CmdCloseSession:
		m.reply([ResponseLen]byte{op})

	case CmdGetCurrencyChar:
		slot := m.resolveSlot(cmd[1] & 0x07)
		m.replySegment(op, m.currencies[slot][cmd[2]%CurrencyNameLen])

	case CmdSetCurrencyChar, CmdSetCurrencyCharDefault:
		slot := cmd[1] & 0x07
		m.currencies[slot][cmd[2]%CurrencyNameLen] = [2]byte{cmd[3], cmd[4]}
		m.reply([ResponseLen]byte{op})

	case CmdSetDefaultCurrency:
		m.currentSlot = cmd[1] & 0x07
		m.reply([ResponseLen]byte{op})

	case CmdGetDenomValue:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		m.replyInt32(op, m.denomValues[slot][index])

	case CmdSetDenomValue:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		m.denomValues[slot][index] = int32(uint32(cmd[2])<<24 | uint32(cmd[3])<<16 | uint32(cmd[4])<<8 | uint32(cmd[5]))
		m.reply([ResponseLen]byte{op})

	case CmdSetDenomValueDef:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		m.shadowValues[slot][index] = int32(uint32(cmd[2])<<24 | uint32(cmd[3])<<16 | uint32(cmd[4])<<8 | uint32(cmd[5]))
		m.reply([ResponseLen]byte{op})

	case CmdGetDenomWeight:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		raw := m.denomWeights[slot][index]
		m.reply([ResponseLen]byte{op, 0, 0, byte(raw >> 16), byte(raw >> 8), byte(raw)})

	case CmdSetDenomWeight:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		flag := m.denomWeights[slot][index] & 0x800000
		m.denomWeights[slot][index] = flag | uint32(cmd[2])<<16 | uint32(cmd[3])<<8 | uint32(cmd[4])
		m.reply([ResponseLen]byte{op})

	case CmdSetDenomWeightDef:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		m.shadowWeights[slot][index] = uint32(cmd[2])<<16 | uint32(cmd[3])<<8 | uint32(cmd[4])
		m.reply([ResponseLen]byte{op})

	case CmdGetDenomQuantity:
		index := cmd[1] & 0x3F
		switch cmd[1] & 0xC0 {
		case quantityModeDenom:
			m.replyInt32(op, m.denomQty[index])
		case quantityModeCoinRoll:
			if !m.rollStorage {
				// 旧固件对未知子模式沉默
				m.pendingSilent = true
				return
			}
			m.replyInt32(op, m.rollQty[index])
		default:
			m.replyInt32(op, m.denomQty[index])
		}

	case CmdSetDenomText:
		slot := m.resolveSlot(cmd[1] >> 6)
		index := cmd[1] & 0x3F
		m.denomTexts[slot][index][cmd[2]%DenomTextLen] = [2]byte{cmd[3], cmd[4]}
		m.reply([ResponseLen]byte{op})

	case CmdGetMeasuredWeight:
		m.replyInt32(op, m.measuredRaw)

	case CmdGetFloatSettings:
		m.replyInt32(op, m.floatRaw)

	case CmdSetAutoAdd, CmdSetAutoContinue, CmdSetCoinRollMode:
		m.flags[op] = cmd[1]
		m.reply([ResponseLen]byte{op})

	case CmdGetAutoAdd:
		m.reply([ResponseLen]byte{op, m.flags[CmdSetAutoAdd]})
	case CmdGetAutoContinue:
		m.reply([ResponseLen]byte{op, m.flags[CmdSetAutoContinue]})
	case CmdGetCoinRollMode:
		m.reply([ResponseLen]byte{op, m.flags[CmdSetCoinRollMode]})

	case CmdSetProfileChar:
		m.profile[cmd[1]%ProfileNameLen] = [2]byte{cmd[2], cmd[3]}
		m.reply([ResponseLen]byte{op})

	case CmdGetProfileChar:
		m.replySegment(op, m.profile[cmd[1]%ProfileNameLen])

	case CmdGetUserID:
		m.replyInt32(op, int32(m.userID))

	case CmdSetUserID:
		m.userID = uint32(cmd[1])<<24 | uint32(cmd[2])<<16 | uint32(cmd[3])<<8 | uint32(cmd[4])
		m.reply([ResponseLen]byte{op})

	case CmdSetCoinRollData:
		index := cmd[1] & 0x3F
		m.rollData[index] = [4]byte{cmd[2], cmd[3], cmd[4], cmd[5]}
		m.reply([ResponseLen]byte{op})

	case CmdGetCoinRollData:
		index := cmd[1] & 0x3F
		d := m.rollData[index]
		m.reply([ResponseLen]byte{op, d[0], 0, d[1], d[2], d[3]})

	case CmdFactoryReset:
		m.denomValues = m.shadowValues
		for slot := range m.denomWeights {
			for i := range m.denomWeights[slot] {
				flag := m.denomWeights[slot][i] & 0x800000
				m.denomWeights[slot][i] = flag | m.shadowWeights[slot][i]
			}
		}
		m.reply([ResponseLen]byte{op})

	default:
		// 未实现的命令回显命令码，载荷全零
		m.reply([ResponseLen]byte{op})
	}
}
