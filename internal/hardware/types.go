package hardware

import "time"

// 超时定义
const (
	// DefaultTimeout 单次命令往返的默认超时
	DefaultTimeout = 10 * time.Second
	// CoinRollProbeTimeout 卷币数量探测的固定短超时。
	// 旧固件没有独立的卷币存储，探测超时是预期内的正常情况。
	CoinRollProbeTimeout = 1000 * time.Millisecond
)

// 货币槽位定义
const (
	// CurrentCurrency 逻辑"当前货币"选择器
	CurrentCurrency byte = 0
	// MaxCurrencies 物理货币槽位数（1..3）
	MaxCurrencies byte = 3
	// MaxCurrenciesV6 第六代协议支持的槽位数
	MaxCurrenciesV6 byte = 4
	// CurrencyNameLen 货币名称固定为三个字母
	CurrencyNameLen = 3
	// ProfileNameLen 配置名称的最大字符数
	ProfileNameLen = 8
	// DenomTextLen 面额显示文本的最大字符数
	DenomTextLen = 4
)

// CashType 现金类型。不是顺序枚举：原始字节会被算术叠加进重量字段的高字节，
// 必须保留固件的原始数值。
type CashType byte

const (
	CashTypeCoin     CashType = 0x00 // 硬币
	CashTypeCoinRoll CashType = 0x40 // 卷币
	CashTypeBanknote CashType = 0x80 // 纸币
)

// String 返回现金类型的可读名称
func (t CashType) String() string {
	switch t {
	case CashTypeCoin:
		return "coin"
	case CashTypeCoinRoll:
		return "coin_roll"
	case CashTypeBanknote:
		return "banknote"
	default:
		return "unknown"
	}
}

// DenominationRecord 一条面额记账记录
type DenominationRecord struct {
	Denomination int32    `json:"denomination"` // 面额（最小货币单位）
	Quantity     int32    `json:"quantity"`     // 数量
	Weight       float64  `json:"weight"`       // 单件重量（克）
	CashType     CashType `json:"cash_type"`    // 现金类型
}

// Valid 记录有效性：面额与重量都必须为正
func (r DenominationRecord) Valid() bool {
	return r.Denomination > 0 && r.Weight > 0
}

// CoinRollData 卷币静态配置（不属于记账列表）
type CoinRollData struct {
	Quantity    byte    `json:"quantity"`     // 每卷硬币数 0..255
	PaperWeight float64 `json:"paper_weight"` // 卷纸重量（克）
}

// FloatSettings 浮动设置。
// 第1-4代固件上报的是校准系数（raw×0.0001），第5-6代直接上报克数（raw×0.01）。
type FloatSettings struct {
	Raw   int32   `json:"raw"`
	Value float64 `json:"value"`
}
