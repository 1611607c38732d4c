package hardware

import (
	"strings"
	"time"

	"github.com/cashwork/coin-scale/internal/errors"
	"go.uber.org/zap"
)

// 重量字段为24位（清除标志位后23位有效），四位隐含小数
const maxEncodableWeight = float64(0x7FFFFF) * 0.0001

// ============= 参数校验 =============

// validateSlot 校验货币槽位。0为逻辑"当前货币"；第4槽位需要第六代协议。
func (c *ScaleController) validateSlot(slot byte) error {
	if slot <= MaxCurrencies {
		return nil
	}
	if slot == MaxCurrenciesV6 {
		if c.version >= Version6 {
			return nil
		}
		return errors.Newf(errors.ErrUnsupportedFeature, "第4货币槽位需要第6代协议，当前为第%d代", c.version)
	}
	return errors.Newf(errors.ErrInvalidParam, "货币槽位超出范围: %d", slot)
}

// validateDenomSlot 面额寻址的槽位打包在参数字节的高2位，只覆盖槽位0..3；
// 第6代的第4货币槽位仅对货币名称类操作（整字节槽位字段）可寻址。
func (c *ScaleController) validateDenomSlot(slot byte) error {
	if err := c.validateSlot(slot); err != nil {
		return err
	}
	if slot > MaxCurrencies {
		return errors.Newf(errors.ErrInvalidParam, "面额寻址仅支持槽位0-%d", MaxCurrencies)
	}
	return nil
}

// validateIndex 校验面额序号。序号占参数字节的低6位。
func (c *ScaleController) validateIndex(index byte) error {
	if index == 0 || index > 0x3F {
		return errors.Newf(errors.ErrInvalidParam, "面额序号超出范围: %d", index)
	}
	return nil
}

// resolvePhysicalSlot 把逻辑槽位0替换为解析出的物理槽位
func (c *ScaleController) resolvePhysicalSlot(slot byte, timeout time.Duration) (byte, error) {
	if slot != CurrentCurrency {
		return slot, nil
	}
	return c.ResolveCurrentCurrency(timeout)
}

// ============= 货币（0xFC/0xFF/0xEF/0xC5） =============

// GetCurrencyName 读取槽位的三字母货币名称。槽位0为当前货币。
func (c *ScaleController) GetCurrencyName(slot byte, timeout time.Duration) (string, error) {
	if err := c.validateSlot(slot); err != nil {
		return "", err
	}
	if err := c.checkReady(); err != nil {
		return "", err
	}
	timeout = c.effectiveTimeout(timeout)

	name := make([]byte, CurrencyNameLen)
	for i := byte(0); i < CurrencyNameLen; i++ {
		resp, err := c.exchange(BuildCommand(CmdGetCurrencyChar, slot, i), timeout)
		if err != nil {
			return "", err
		}
		name[i] = DecodeSegment(resp[1], resp[2], c.version)
	}
	return string(name), nil
}

// SetCurrencyName 写入槽位的三字母货币名称（每个字母写入+持久化两帧）
func (c *ScaleController) SetCurrencyName(slot byte, name string, timeout time.Duration) error {
	if err := c.validateSlot(slot); err != nil {
		return err
	}
	if slot == CurrentCurrency {
		return errors.New(errors.ErrInvalidParam, "写入货币名称必须指定物理槽位")
	}
	if len(name) != CurrencyNameLen {
		return errors.Newf(errors.ErrInvalidParam, "货币名称必须为%d个字母: %q", CurrencyNameLen, name)
	}
	words, err := encodeSegmentString(name)
	if err != nil {
		return err
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	for i, w := range words {
		if err := c.exchangeSet(CmdSetCurrencyChar, []byte{slot, byte(i), w[0], w[1]}, timeout); err != nil {
			c.logger.Error("Set currency name failed",
				zap.Uint8("slot", slot),
				zap.String("name", name),
				zap.Int("char", i),
				zap.Error(err))
			return err
		}
	}

	c.logger.Info("Currency name set", zap.Uint8("slot", slot), zap.String("name", name))
	return nil
}

// ResolveCurrentCurrency 把逻辑"当前货币"（0）解析为物理槽位（1..3）：
// 读取槽位0的名称，返回名称相同的第一个物理槽位。
//
// 没有槽位匹配时返回0。调用方会把这个0当作槽位号继续寻址设备——
// 是有意让固件自行解释"当前"，还是历史遗留缺陷，尚无定论；保持原行为。
func (c *ScaleController) ResolveCurrentCurrency(timeout time.Duration) (byte, error) {
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	timeout = c.effectiveTimeout(timeout)

	current, err := c.GetCurrencyName(CurrentCurrency, timeout)
	if err != nil {
		return 0, err
	}

	for slot := byte(1); slot <= MaxCurrencies; slot++ {
		name, err := c.GetCurrencyName(slot, timeout)
		if err != nil {
			return 0, err
		}
		if name == current {
			return slot, nil
		}
	}

	c.logger.Warn("Current currency did not match any physical slot",
		zap.String("name", current))
	return 0, nil
}

// SetDefaultCurrency 设置上电默认货币槽位
func (c *ScaleController) SetDefaultCurrency(slot byte, timeout time.Duration) error {
	if err := c.validateSlot(slot); err != nil {
		return err
	}
	if slot == CurrentCurrency {
		return errors.New(errors.ErrInvalidParam, "默认货币必须指定物理槽位")
	}
	if err := c.checkReady(); err != nil {
		return err
	}

	_, err := c.exchange(BuildCommand(CmdSetDefaultCurrency, slot), c.effectiveTimeout(timeout))
	if err != nil {
		return err
	}
	c.logger.Info("Default currency set", zap.Uint8("slot", slot))
	return nil
}

// ============= 面额（0xFB/0xFA/0xF9/0xFE/0xFD/0xBB） =============

// GetDenominationValue 读取面额数值（最小货币单位）。槽位0自动解析。
func (c *ScaleController) GetDenominationValue(slot byte, index byte, timeout time.Duration) (int32, error) {
	if err := c.validateDenomSlot(slot); err != nil {
		return 0, err
	}
	if err := c.validateIndex(index); err != nil {
		return 0, err
	}
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return 0, err
	}
	return c.readDenominationValue(slot, index, timeout)
}

// readDenominationValue 按已解析的槽位读取面额数值，不再触发槽位解析。
// 记账枚举对每个面额复用同一个解析结果。
func (c *ScaleController) readDenominationValue(slot byte, index byte, timeout time.Duration) (int32, error) {
	resp, err := c.exchange(BuildCommand(CmdGetDenomValue, packAddress(slot, index)), timeout)
	if err != nil {
		return 0, err
	}
	return decodeInt32(resp), nil
}

// SetDenominationValue 写入面额数值（写入+持久化两帧）
func (c *ScaleController) SetDenominationValue(slot byte, index byte, value int32, timeout time.Duration) error {
	if err := c.validateDenomSlot(slot); err != nil {
		return err
	}
	if err := c.validateIndex(index); err != nil {
		return err
	}
	if value <= 0 {
		return errors.Newf(errors.ErrInvalidParam, "面额数值必须为正: %d", value)
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return err
	}

	params := []byte{
		packAddress(slot, index),
		byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value),
	}
	if err := c.exchangeSet(CmdSetDenomValue, params, timeout); err != nil {
		c.logger.Error("Set denomination value failed",
			zap.Uint8("slot", slot),
			zap.Uint8("index", index),
			zap.Int32("value", value),
			zap.Error(err))
		return err
	}

	c.logger.Info("Denomination value set",
		zap.Uint8("slot", slot),
		zap.Uint8("index", index),
		zap.Int32("value", value))
	return nil
}

// GetDenominationWeight 读取面额单件重量（克）
func (c *ScaleController) GetDenominationWeight(slot byte, index byte, timeout time.Duration) (float64, error) {
	if err := c.validateDenomSlot(slot); err != nil {
		return 0, err
	}
	if err := c.validateIndex(index); err != nil {
		return 0, err
	}
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return 0, err
	}
	return c.readDenominationWeight(slot, index, timeout)
}

// readDenominationWeight 按已解析的槽位读取面额重量
func (c *ScaleController) readDenominationWeight(slot byte, index byte, timeout time.Duration) (float64, error) {
	resp, err := c.exchange(BuildCommand(CmdGetDenomWeight, packAddress(slot, index)), timeout)
	if err != nil {
		return 0, err
	}
	return decodeWeight24(resp), nil
}

// SetDenominationWeight 写入面额单件重量（写入+持久化两帧）
func (c *ScaleController) SetDenominationWeight(slot byte, index byte, weight float64, timeout time.Duration) error {
	if err := c.validateDenomSlot(slot); err != nil {
		return err
	}
	if err := c.validateIndex(index); err != nil {
		return err
	}
	if weight <= 0 || weight > maxEncodableWeight {
		return errors.Newf(errors.ErrInvalidParam, "重量超出可编码范围: %.4f", weight)
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return err
	}

	raw := uint32(weight*10000 + 0.5)
	params := []byte{
		packAddress(slot, index),
		byte(raw >> 16), byte(raw >> 8), byte(raw),
	}
	if err := c.exchangeSet(CmdSetDenomWeight, params, timeout); err != nil {
		c.logger.Error("Set denomination weight failed",
			zap.Uint8("slot", slot),
			zap.Uint8("index", index),
			zap.Float64("weight", weight),
			zap.Error(err))
		return err
	}

	c.logger.Info("Denomination weight set",
		zap.Uint8("slot", slot),
		zap.Uint8("index", index),
		zap.Float64("weight", weight))
	return nil
}

// GetDenominationQuantity 读取面额计数。参数字节的0x40位选择数量子模式。
func (c *ScaleController) GetDenominationQuantity(index byte, timeout time.Duration) (int32, error) {
	if err := c.validateIndex(index); err != nil {
		return 0, err
	}
	if err := c.checkReady(); err != nil {
		return 0, err
	}

	resp, err := c.exchange(BuildCommand(CmdGetDenomQuantity, index|quantityModeDenom), c.effectiveTimeout(timeout))
	if err != nil {
		return 0, err
	}
	return decodeInt32(resp), nil
}

// GetCoinRollQuantity 读取独立卷币存储中的卷数。
// 旧固件没有这块存储，调用方（枚举器）对失败静默降级。
func (c *ScaleController) GetCoinRollQuantity(index byte, timeout time.Duration) (int32, error) {
	if err := c.validateIndex(index); err != nil {
		return 0, err
	}
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	if timeout <= 0 {
		timeout = c.probeTimeout
	}

	resp, err := c.exchange(BuildCommand(CmdGetDenomQuantity, index|quantityModeCoinRoll), timeout)
	if err != nil {
		return 0, err
	}
	return decodeInt32(resp), nil
}

// GetCashType 读取面额的现金类型。复用重量命令码，只看标志位字段。
func (c *ScaleController) GetCashType(slot byte, index byte, timeout time.Duration) (CashType, error) {
	if err := c.validateDenomSlot(slot); err != nil {
		return CashTypeCoin, err
	}
	if err := c.validateIndex(index); err != nil {
		return CashTypeCoin, err
	}
	if err := c.checkReady(); err != nil {
		return CashTypeCoin, err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return CashTypeCoin, err
	}
	return c.readCashType(slot, index, timeout)
}

// readCashType 按已解析的槽位读取现金类型
func (c *ScaleController) readCashType(slot byte, index byte, timeout time.Duration) (CashType, error) {
	resp, err := c.exchange(BuildCommand(CmdGetDenomWeight, packAddress(slot, index)), timeout)
	if err != nil {
		return CashTypeCoin, err
	}
	return decodeCashType(resp), nil
}

// SetDenominationText 写入面额显示文本（逐字符写入+持久化）
func (c *ScaleController) SetDenominationText(slot byte, index byte, text string, timeout time.Duration) error {
	if err := c.validateDenomSlot(slot); err != nil {
		return err
	}
	if err := c.validateIndex(index); err != nil {
		return err
	}
	if len(text) > DenomTextLen {
		return errors.Newf(errors.ErrInvalidParam, "面额文本最多%d个字符: %q", DenomTextLen, text)
	}
	// 不足部分以空格清空旧内容
	padded := text + strings.Repeat(" ", DenomTextLen-len(text))
	words, err := encodeSegmentString(padded)
	if err != nil {
		return err
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err = c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return err
	}

	for i, w := range words {
		params := []byte{packAddress(slot, index), byte(i), w[0], w[1]}
		if err := c.exchangeSet(CmdSetDenomText, params, timeout); err != nil {
			c.logger.Error("Set denomination text failed",
				zap.Uint8("slot", slot),
				zap.Uint8("index", index),
				zap.String("text", text),
				zap.Int("char", i),
				zap.Error(err))
			return err
		}
	}

	c.logger.Info("Denomination text set",
		zap.Uint8("slot", slot),
		zap.Uint8("index", index),
		zap.String("text", text))
	return nil
}

// RemoveDenomination 删除一个面额：依次清零文本、重量、数值。
// 序列由多帧组成，没有原子性；中途失败时设备保留已发送帧的效果。
func (c *ScaleController) RemoveDenomination(slot byte, index byte, timeout time.Duration) error {
	if err := c.validateDenomSlot(slot); err != nil {
		return err
	}
	if err := c.validateIndex(index); err != nil {
		return err
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return err
	}

	if err := c.SetDenominationText(slot, index, "", timeout); err != nil {
		return err
	}

	// 枚举以数值≤0或重量≤0为终止条件，清零即从记账列表中移除
	addr := packAddress(slot, index)
	if err := c.exchangeSet(CmdSetDenomWeight, []byte{addr, 0, 0, 0}, timeout); err != nil {
		return err
	}
	if err := c.exchangeSet(CmdSetDenomValue, []byte{addr, 0, 0, 0, 0}, timeout); err != nil {
		return err
	}

	c.logger.Info("Denomination removed", zap.Uint8("slot", slot), zap.Uint8("index", index))
	return nil
}

// ============= 称重与浮动设置（0xD9/0xDA） =============

// GetMeasuredWeight 读取当前称重值（克）。去皮后可能为负。
func (c *ScaleController) GetMeasuredWeight(timeout time.Duration) (float64, error) {
	if err := c.checkReady(); err != nil {
		return 0, err
	}

	resp, err := c.exchange(BuildCommand(CmdGetMeasuredWeight), c.effectiveTimeout(timeout))
	if err != nil {
		return 0, err
	}
	return float64(decodeInt32(resp)) * 0.0001, nil
}

// GetFloatSettings 读取浮动设置。
// 第1-4代固件上报校准系数（raw×0.0001），第5-6代直接上报克数（raw×0.01）。
func (c *ScaleController) GetFloatSettings(timeout time.Duration) (FloatSettings, error) {
	if err := c.checkReady(); err != nil {
		return FloatSettings{}, err
	}

	resp, err := c.exchange(BuildCommand(CmdGetFloatSettings), c.effectiveTimeout(timeout))
	if err != nil {
		return FloatSettings{}, err
	}

	raw := decodeInt32(resp)
	s := FloatSettings{Raw: raw}
	if c.version >= Version5 {
		s.Value = float64(raw) * 0.01
	} else {
		s.Value = float64(raw) * 0.0001
	}
	return s, nil
}

// ============= 开关量设置（0xDF/0xDE/0xDD/0xDC/0xC9/0xC8） =============

// setFlag 写入一个布尔开关
func (c *ScaleController) setFlag(op byte, enabled bool, timeout time.Duration) error {
	if err := c.checkReady(); err != nil {
		return err
	}

	var v byte
	if enabled {
		v = 1
	}
	_, err := c.exchange(BuildCommand(op, v), c.effectiveTimeout(timeout))
	return err
}

// getFlag 读取一个布尔开关（响应偏移1）
func (c *ScaleController) getFlag(op byte, timeout time.Duration) (bool, error) {
	if err := c.checkReady(); err != nil {
		return false, err
	}

	resp, err := c.exchange(BuildCommand(op), c.effectiveTimeout(timeout))
	if err != nil {
		return false, err
	}
	return resp[1] != 0, nil
}

// SetAutoAdd 自动累加开关
func (c *ScaleController) SetAutoAdd(enabled bool, timeout time.Duration) error {
	return c.setFlag(CmdSetAutoAdd, enabled, timeout)
}

// GetAutoAdd 读取自动累加开关
func (c *ScaleController) GetAutoAdd(timeout time.Duration) (bool, error) {
	return c.getFlag(CmdGetAutoAdd, timeout)
}

// SetAutoContinue 自动继续开关
func (c *ScaleController) SetAutoContinue(enabled bool, timeout time.Duration) error {
	return c.setFlag(CmdSetAutoContinue, enabled, timeout)
}

// GetAutoContinue 读取自动继续开关
func (c *ScaleController) GetAutoContinue(timeout time.Duration) (bool, error) {
	return c.getFlag(CmdGetAutoContinue, timeout)
}

// SetCoinRollMode 卷币功能开关
func (c *ScaleController) SetCoinRollMode(enabled bool, timeout time.Duration) error {
	return c.setFlag(CmdSetCoinRollMode, enabled, timeout)
}

// GetCoinRollMode 读取卷币功能开关
func (c *ScaleController) GetCoinRollMode(timeout time.Duration) (bool, error) {
	return c.getFlag(CmdGetCoinRollMode, timeout)
}

// ============= 配置项（0xC7/0xC6/0xC4/0xC3/0xCB/0xCA/0xD5） =============

// GetProfileName 读取配置名称（右侧空格截断）
func (c *ScaleController) GetProfileName(timeout time.Duration) (string, error) {
	if err := c.checkReady(); err != nil {
		return "", err
	}
	timeout = c.effectiveTimeout(timeout)

	name := make([]byte, ProfileNameLen)
	for i := byte(0); i < ProfileNameLen; i++ {
		resp, err := c.exchange(BuildCommand(CmdGetProfileChar, i), timeout)
		if err != nil {
			return "", err
		}
		name[i] = DecodeSegment(resp[1], resp[2], c.version)
	}
	return strings.TrimRight(string(name), " "), nil
}

// SetProfileName 写入配置名称（不足部分以空格清空）
func (c *ScaleController) SetProfileName(name string, timeout time.Duration) error {
	if len(name) > ProfileNameLen {
		return errors.Newf(errors.ErrInvalidParam, "配置名称最多%d个字符: %q", ProfileNameLen, name)
	}
	padded := name + strings.Repeat(" ", ProfileNameLen-len(name))
	words, err := encodeSegmentString(padded)
	if err != nil {
		return err
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	timeout = c.effectiveTimeout(timeout)

	for i, w := range words {
		if _, err := c.exchange(BuildCommand(CmdSetProfileChar, byte(i), w[0], w[1]), timeout); err != nil {
			return err
		}
	}

	c.logger.Info("Profile name set", zap.String("name", name))
	return nil
}

// GetUserID 读取用户编号
func (c *ScaleController) GetUserID(timeout time.Duration) (uint32, error) {
	if err := c.checkReady(); err != nil {
		return 0, err
	}

	resp, err := c.exchange(BuildCommand(CmdGetUserID), c.effectiveTimeout(timeout))
	if err != nil {
		return 0, err
	}
	return uint32(decodeInt32(resp)), nil
}

// SetUserID 写入用户编号
func (c *ScaleController) SetUserID(id uint32, timeout time.Duration) error {
	if err := c.checkReady(); err != nil {
		return err
	}

	params := []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	if _, err := c.exchange(BuildCommand(CmdSetUserID, params...), c.effectiveTimeout(timeout)); err != nil {
		return err
	}
	c.logger.Info("User id set", zap.Uint32("user_id", id))
	return nil
}

// GetCoinRollData 读取卷币静态配置。需要第4代及以上固件的独立卷币存储。
func (c *ScaleController) GetCoinRollData(index byte, timeout time.Duration) (CoinRollData, error) {
	if err := c.validateIndex(index); err != nil {
		return CoinRollData{}, err
	}
	if c.version < Version4 {
		return CoinRollData{}, errors.Newf(errors.ErrUnsupportedFeature, "卷币数据需要第4代协议，当前为第%d代", c.version)
	}
	if err := c.checkReady(); err != nil {
		return CoinRollData{}, err
	}

	resp, err := c.exchange(BuildCommand(CmdGetCoinRollData, index), c.effectiveTimeout(timeout))
	if err != nil {
		return CoinRollData{}, err
	}
	return CoinRollData{
		Quantity:    resp[1],
		PaperWeight: decodeWeight24(resp),
	}, nil
}

// SetCoinRollData 写入卷币静态配置
func (c *ScaleController) SetCoinRollData(index byte, data CoinRollData, timeout time.Duration) error {
	if err := c.validateIndex(index); err != nil {
		return err
	}
	if data.PaperWeight < 0 || data.PaperWeight > maxEncodableWeight {
		return errors.Newf(errors.ErrInvalidParam, "卷纸重量超出可编码范围: %.4f", data.PaperWeight)
	}
	if c.version < Version4 {
		return errors.Newf(errors.ErrUnsupportedFeature, "卷币数据需要第4代协议，当前为第%d代", c.version)
	}
	if err := c.checkReady(); err != nil {
		return err
	}

	raw := uint32(data.PaperWeight*10000 + 0.5)
	params := []byte{index, data.Quantity, byte(raw >> 16), byte(raw >> 8), byte(raw)}
	if _, err := c.exchange(BuildCommand(CmdSetCoinRollData, params...), c.effectiveTimeout(timeout)); err != nil {
		return err
	}

	c.logger.Info("Coin roll data set",
		zap.Uint8("index", index),
		zap.Uint8("quantity", data.Quantity),
		zap.Float64("paper_weight", data.PaperWeight))
	return nil
}

// FactoryReset 恢复出厂设置：设备从影子存储还原所有配置
func (c *ScaleController) FactoryReset(timeout time.Duration) error {
	if err := c.checkReady(); err != nil {
		return err
	}

	if _, err := c.exchange(BuildCommand(CmdFactoryReset), c.effectiveTimeout(timeout)); err != nil {
		return err
	}
	c.logger.Warn("Factory reset issued")
	return nil
}
