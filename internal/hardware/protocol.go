package hardware

import (
	"github.com/cashwork/coin-scale/internal/errors"
)

// 帧定义
const (
	CommandLen  = 6 // 下行命令的逻辑字节数（CRC之前）
	FrameLen    = 8 // 含CRC的完整下行帧长度
	ResponseLen = 6 // 上行响应的有效载荷字节数
	// 上行包首字节为HID report id，丢弃后才是6字节载荷
	MinReportLen = 1 + ResponseLen

	// 固件要求的"无值"占位字节，按 0xAA/0x55 交替填充。
	// 这不是数据，固件只检查位置上有占位标记。
	NoValueA byte = 0xAA
	NoValueB byte = 0x55
)

// 命令码定义
const (
	// 会话/系统
	CmdProtocolVersion byte = 0xE9 // 协议版本握手
	CmdCloseSession    byte = 0xF6 // 关闭会话
	CmdFactoryReset    byte = 0xD5 // 恢复出厂设置

	// 货币
	CmdGetCurrencyChar        byte = 0xFC // 读货币名称单字符
	CmdSetCurrencyChar        byte = 0xFF // 写货币名称单字符
	CmdSetCurrencyCharDefault byte = 0xEF // 写货币名称单字符（出厂影子存储）
	CmdSetDefaultCurrency     byte = 0xC5 // 设置默认货币槽位

	// 面额
	CmdGetDenomValue       byte = 0xFB // 读面额数值
	CmdGetDenomWeight      byte = 0xFA // 读面额重量 / 现金类型（同一命令码，字段解释不同）
	CmdGetDenomQuantity    byte = 0xF9 // 读面额/卷币数量（参数高2位为子模式）
	CmdSetDenomValue       byte = 0xFE // 写面额数值
	CmdSetDenomValueDef    byte = 0xEE // 写面额数值（出厂影子存储）
	CmdSetDenomWeight      byte = 0xFD // 写面额重量
	CmdSetDenomWeightDef   byte = 0xED // 写面额重量/文本（出厂影子存储，两者共用）
	CmdSetDenomText        byte = 0xBB // 写面额显示文本单字符

	// 称重与浮动设置
	CmdGetMeasuredWeight byte = 0xD9 // 读当前称重值
	CmdGetFloatSettings  byte = 0xDA // 读浮动设置

	// 开关量设置
	CmdSetAutoAdd       byte = 0xDF // 自动累加 开/关
	CmdGetAutoAdd       byte = 0xDE
	CmdSetAutoContinue  byte = 0xDD // 自动继续 开/关
	CmdGetAutoContinue  byte = 0xDC
	CmdSetCoinRollMode  byte = 0xC9 // 卷币功能 开/关
	CmdGetCoinRollMode  byte = 0xC8

	// 配置项
	CmdSetProfileChar  byte = 0xC7 // 写配置名称单字符
	CmdGetProfileChar  byte = 0xC6 // 读配置名称单字符
	CmdGetUserID       byte = 0xC4 // 读用户编号
	CmdSetUserID       byte = 0xC3 // 写用户编号
	CmdSetCoinRollData byte = 0xCB // 写卷币数据（数量+纸重）
	CmdGetCoinRollData byte = 0xCA // 读卷币数据
)

// persistOpcodes 写命令 → 出厂影子存储命令的配对表。
// 每个写操作都要先后发送两帧，两帧都成功写入才算持久化。
var persistOpcodes = map[byte]byte{
	CmdSetCurrencyChar: CmdSetCurrencyCharDefault,
	CmdSetDenomValue:   CmdSetDenomValueDef,
	CmdSetDenomWeight:  CmdSetDenomWeightDef,
	CmdSetDenomText:    CmdSetDenomWeightDef, // 文本与重量共用0xED影子存储
}

// 数量子模式（0xF9参数字节的高2位）
const (
	quantityModeDenom    byte = 0x40 // index+0x40 读面额数量
	quantityModeCoinRoll byte = 0xC0 // (3<<6)|index 读卷币数量
)

// packAddress 把货币槽位（高2位）与面额序号（低6位）打包进一个参数字节
func packAddress(slot byte, index byte) byte {
	return (slot << 6) | (index & 0x3F)
}

// BuildCommand 构造6字节逻辑命令：命令码+参数，不足部分以占位字节交替填充
func BuildCommand(op byte, params ...byte) [CommandLen]byte {
	var cmd [CommandLen]byte
	cmd[0] = op
	n := len(params)
	if n > CommandLen-1 {
		n = CommandLen - 1
	}
	copy(cmd[1:], params[:n])
	for i := 1 + n; i < CommandLen; i++ {
		if (i-1-n)%2 == 0 {
			cmd[i] = NoValueA
		} else {
			cmd[i] = NoValueB
		}
	}
	return cmd
}

// FrameCommand 在6字节命令后附加CRC（高字节在前），得到8字节下行帧
func FrameCommand(cmd [CommandLen]byte) [FrameLen]byte {
	var frame [FrameLen]byte
	copy(frame[:], cmd[:])
	crc := ChecksumCRC16(cmd[:])
	frame[6] = byte(crc >> 8)
	frame[7] = byte(crc)
	return frame
}

// UnwrapResponse 从传输层原始数据中剥离report id，取出6字节响应载荷。
// 不足7字节的读取是传输失败，不存在合法的短响应。
func UnwrapResponse(raw []byte) ([ResponseLen]byte, error) {
	var resp [ResponseLen]byte
	if len(raw) < MinReportLen {
		return resp, errors.Newf(errors.ErrShortResponse, "收到%d字节，至少需要%d字节", len(raw), MinReportLen)
	}
	copy(resp[:], raw[1:1+ResponseLen])
	return resp, nil
}
