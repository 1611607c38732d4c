package hardware

import (
	"testing"

	"github.com/cashwork/coin-scale/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCurrencyNameRoundTrip 写入货币名称后可读回
func TestCurrencyNameRoundTrip(t *testing.T) {
	c, mock := newTestController(t, Version2)

	require.NoError(t, c.SetCurrencyName(2, "EUR", 0))
	name, err := c.GetCurrencyName(2, 0)
	require.NoError(t, err)
	assert.Equal(t, "EUR", name)

	// 每个字母一对主帧+影子帧
	var writes, persists int
	for _, op := range mock.Opcodes() {
		switch op {
		case CmdSetCurrencyChar:
			writes++
		case CmdSetCurrencyCharDefault:
			persists++
		}
	}
	assert.Equal(t, CurrencyNameLen, writes)
	assert.Equal(t, CurrencyNameLen, persists)
}

// TestCurrencyNameVersion1 第一代的段码字节序交换对调用方透明
func TestCurrencyNameVersion1(t *testing.T) {
	c, mock := newTestController(t, Version1)
	mock.SeedCurrency(1, "GBP")

	name, err := c.GetCurrencyName(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "GBP", name)
}

// TestSetCurrencyNameValidation 名称长度与字符集校验
func TestSetCurrencyNameValidation(t *testing.T) {
	c, _ := newTestController(t, Version2)

	assert.Error(t, c.SetCurrencyName(1, "US", 0))
	assert.Error(t, c.SetCurrencyName(1, "USDX", 0))
	assert.Error(t, c.SetCurrencyName(0, "USD", 0))

	err := c.SetCurrencyName(1, "us$", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidCharacter))
}

// TestResolveCurrentCurrency 当前货币解析为第一个名称相同的物理槽位
func TestResolveCurrentCurrency(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SeedCurrency(2, "EUR")
	mock.SeedCurrency(3, "GBP")
	mock.SetCurrentSlot(2)

	slot, err := c.ResolveCurrentCurrency(0)
	require.NoError(t, err)
	assert.Equal(t, byte(2), slot)
}

// TestResolveCurrentCurrencyNoMatch 无匹配时返回0（历史行为）
func TestResolveCurrentCurrencyNoMatch(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SeedCurrency(2, "EUR")
	mock.SeedCurrency(3, "GBP")
	mock.SetCurrentSlot(4) // 槽位4未配置名称

	slot, err := c.ResolveCurrentCurrency(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), slot)
}

// TestDenominationValueRoundTrip 面额数值写入后可读回
func TestDenominationValueRoundTrip(t *testing.T) {
	c, _ := newTestController(t, Version2)

	require.NoError(t, c.SetDenominationValue(1, 3, 500, 0))
	value, err := c.GetDenominationValue(1, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(500), value)

	assert.Error(t, c.SetDenominationValue(1, 3, 0, 0))
	assert.Error(t, c.SetDenominationValue(1, 3, -1, 0))
}

// TestDenominationWeightRoundTrip 重量写入后可读回，标志位不受影响
func TestDenominationWeightRoundTrip(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedDenomination(1, 3, 500, 1.0, 0, CashTypeBanknote)

	require.NoError(t, c.SetDenominationWeight(1, 3, 2.5, 0))

	weight, err := c.GetDenominationWeight(1, 3, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, weight, 0.0001)

	// 重量写入不改变现金类型标志位
	cashType, err := c.GetCashType(1, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, CashTypeBanknote, cashType)
}

// TestSetDenominationWeightRange 重量超出24位可编码范围时拒绝
func TestSetDenominationWeightRange(t *testing.T) {
	c, _ := newTestController(t, Version2)

	assert.Error(t, c.SetDenominationWeight(1, 1, 0, 0))
	assert.Error(t, c.SetDenominationWeight(1, 1, -1, 0))
	assert.Error(t, c.SetDenominationWeight(1, 1, 900, 0))
	assert.NoError(t, c.SetDenominationWeight(1, 1, 838.0, 0))
}

// TestGetCashType 现金类型取自重量响应的标志位
func TestGetCashType(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedDenomination(1, 1, 100, 5.67, 0, CashTypeCoin)
	mock.SeedDenomination(1, 2, 1000, 1.02, 0, CashTypeBanknote)

	coin, err := c.GetCashType(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, CashTypeCoin, coin)

	note, err := c.GetCashType(1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, CashTypeBanknote, note)

	// 标志位不污染重量数值
	weight, err := c.GetDenominationWeight(1, 2, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.02, weight, 0.0001)
}

// TestRemoveDenomination 删除面额后数值清零，枚举在此终止
func TestRemoveDenomination(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedDenomination(1, 1, 100, 5.0, 0, CashTypeCoin)

	require.NoError(t, c.RemoveDenomination(1, 1, 0))

	value, err := c.GetDenominationValue(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), value)

	weight, err := c.GetDenominationWeight(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, weight)
}

// TestMeasuredWeight 称重值四位隐含小数
func TestMeasuredWeight(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SetMeasuredWeight(123.4567)

	weight, err := c.GetMeasuredWeight(0)
	require.NoError(t, err)
	assert.InDelta(t, 123.4567, weight, 0.0001)

	// 去皮后可以为负
	mock.SetMeasuredWeight(-0.05)
	weight, err = c.GetMeasuredWeight(0)
	require.NoError(t, err)
	assert.InDelta(t, -0.05, weight, 0.0001)
}

// TestFloatSettingsScale 浮动设置的换算系数随代际变化
func TestFloatSettingsScale(t *testing.T) {
	t.Run("第2代按万分之一", func(t *testing.T) {
		c, mock := newTestController(t, Version2)
		mock.SetFloatRaw(12345)
		s, err := c.GetFloatSettings(0)
		require.NoError(t, err)
		assert.Equal(t, int32(12345), s.Raw)
		assert.InDelta(t, 1.2345, s.Value, 0.00001)
	})

	t.Run("第5代按百分之一", func(t *testing.T) {
		c, mock := newTestController(t, Version5)
		mock.SetFloatRaw(12345)
		s, err := c.GetFloatSettings(0)
		require.NoError(t, err)
		assert.InDelta(t, 123.45, s.Value, 0.00001)
	})
}

// TestFlagRoundTrips 布尔开关读写
func TestFlagRoundTrips(t *testing.T) {
	c, _ := newTestController(t, Version2)

	require.NoError(t, c.SetAutoAdd(true, 0))
	on, err := c.GetAutoAdd(0)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, c.SetAutoAdd(false, 0))
	on, err = c.GetAutoAdd(0)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, c.SetAutoContinue(true, 0))
	on, err = c.GetAutoContinue(0)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, c.SetCoinRollMode(true, 0))
	on, err = c.GetCoinRollMode(0)
	require.NoError(t, err)
	assert.True(t, on)
}

// TestProfileNameRoundTrip 配置名称读写，右侧空格截断
func TestProfileNameRoundTrip(t *testing.T) {
	c, _ := newTestController(t, Version2)

	require.NoError(t, c.SetProfileName("SHOP 1", 0))
	name, err := c.GetProfileName(0)
	require.NoError(t, err)
	assert.Equal(t, "SHOP 1", name)

	assert.Error(t, c.SetProfileName("TOO LONG NAME", 0))
}

// TestUserIDRoundTrip 用户编号读写
func TestUserIDRoundTrip(t *testing.T) {
	c, _ := newTestController(t, Version2)

	require.NoError(t, c.SetUserID(0xDEADBEEF, 0))
	id, err := c.GetUserID(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), id)
}

// TestCoinRollDataVersionGate 卷币数据需要第4代及以上固件
func TestCoinRollDataVersionGate(t *testing.T) {
	t.Run("第2代拒绝", func(t *testing.T) {
		c, _ := newTestController(t, Version2)
		_, err := c.GetCoinRollData(1, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrUnsupportedFeature))

		err = c.SetCoinRollData(1, CoinRollData{Quantity: 40}, 0)
		assert.True(t, errors.Is(err, errors.ErrUnsupportedFeature))
	})

	t.Run("第4代读写", func(t *testing.T) {
		c, _ := newTestController(t, Version4)
		require.NoError(t, c.SetCoinRollData(1, CoinRollData{Quantity: 40, PaperWeight: 2.0}, 0))

		data, err := c.GetCoinRollData(1, 0)
		require.NoError(t, err)
		assert.Equal(t, byte(40), data.Quantity)
		assert.InDelta(t, 2.0, data.PaperWeight, 0.0001)
	})
}

// TestFactoryReset 出厂复位后设备从影子存储还原
func TestFactoryReset(t *testing.T) {
	c, mock := newTestController(t, Version2)

	// 写入建立影子副本，再直接篡改在用副本
	require.NoError(t, c.SetDenominationValue(1, 1, 100, 0))
	mock.SeedDenomination(1, 1, 999, 5.0, 0, CashTypeCoin)

	require.NoError(t, c.FactoryReset(0))

	value, err := c.GetDenominationValue(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(100), value)
}
