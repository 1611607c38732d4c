package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetAccountingBasic 枚举到第一个空面额为止，哨兵不计入
func TestGetAccountingBasic(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 1, 2.5, 100, CashTypeCoin)
	mock.SeedDenomination(1, 2, 5, 5.0, 40, CashTypeCoin)
	mock.SeedDenomination(1, 3, 100, 1.0, 7, CashTypeBanknote)
	// 序号4未配置（数值0）：枚举终止
	mock.SeedDenomination(1, 5, 500, 1.1, 3, CashTypeBanknote)

	report, err := c.GetAccounting(CurrentCurrency, 0)
	require.NoError(t, err)

	assert.Equal(t, byte(1), report.CurrencySlot)
	assert.Equal(t, "USD", report.CurrencyName)
	require.Len(t, report.Records, 3)

	assert.Equal(t, int32(1), report.Records[0].Denomination)
	assert.Equal(t, int32(100), report.Records[0].Quantity)
	assert.Equal(t, CashTypeCoin, report.Records[0].CashType)
	assert.InDelta(t, 2.5, report.Records[0].Weight, 0.0001)

	assert.Equal(t, CashTypeBanknote, report.Records[2].CashType)

	// 1×100 + 5×40 + 100×7
	assert.Equal(t, int64(1000), report.Total())
}

// TestGetAccountingCoinRolls 卷币存在非零计数时全部卷币记录保留
func TestGetAccountingCoinRolls(t *testing.T) {
	c, mock := newTestController(t, Version5)
	mock.SeedCurrency(1, "EUR")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 100, 5.0, 10, CashTypeCoin)
	mock.SeedDenomination(1, 2, 200, 8.0, 4, CashTypeCoin)
	mock.SeedCoinRollQuantity(1, 2)
	// 序号2的卷数为0，但因序号1非零而保留

	report, err := c.GetAccounting(1, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 4)

	assert.Equal(t, CashTypeCoin, report.Records[0].CashType)
	assert.Equal(t, CashTypeCoinRoll, report.Records[1].CashType)
	assert.Equal(t, int32(2), report.Records[1].Quantity)
	assert.Equal(t, CashTypeCoinRoll, report.Records[3].CashType)
	assert.Equal(t, int32(0), report.Records[3].Quantity)
}

// TestGetAccountingRollsOnlyForCoins 卷币探测只针对硬币面额；
// 纸币序号即使卷币存储里有残留计数也不产生卷币记录
func TestGetAccountingRollsOnlyForCoins(t *testing.T) {
	c, mock := newTestController(t, Version5)
	mock.SeedCurrency(1, "EUR")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 100, 5.0, 10, CashTypeCoin)
	mock.SeedDenomination(1, 2, 500, 1.0, 5, CashTypeBanknote)
	mock.SeedCoinRollQuantity(1, 2)
	mock.SeedCoinRollQuantity(2, 5) // 纸币序号上的残留值，不应被读出

	report, err := c.GetAccounting(1, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	assert.Equal(t, CashTypeCoin, report.Records[0].CashType)
	assert.Equal(t, CashTypeCoinRoll, report.Records[1].CashType)
	assert.Equal(t, int32(2), report.Records[1].Quantity)
	assert.Equal(t, CashTypeBanknote, report.Records[2].CashType)

	// 帧序列里只有硬币序号的卷币查询
	var probed []byte
	for _, f := range mock.Frames() {
		if f[0] == CmdGetDenomQuantity && f[1]&0xC0 == quantityModeCoinRoll {
			probed = append(probed, f[1]&0x3F)
		}
	}
	assert.Equal(t, []byte{1}, probed)
}

// TestGetAccountingEmptySlot 首个序号数值≤0时不产生任何记录
func TestGetAccountingEmptySlot(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SetCurrentSlot(1)

	report, err := c.GetAccounting(2, 0)
	require.NoError(t, err)
	assert.Empty(t, report.Records)
	assert.Equal(t, int64(0), report.Total())
}

// TestGetAccountingResolvesOncePerCall 货币解析每次记账只执行一次；
// 解析回退为0后，逐面额读取按槽位0直接寻址，不再重复解析
func TestGetAccountingResolvesOncePerCall(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SeedCurrency(2, "EUR")
	mock.SeedCurrency(3, "GBP")
	mock.SetCurrentSlot(4) // 无匹配槽位，解析回退为0
	mock.SeedDenomination(4, 1, 100, 5.0, 10, CashTypeCoin)

	report, err := c.GetAccounting(CurrentCurrency, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, byte(0), report.CurrencySlot)

	// 名称读取只来自一次解析（槽位0..3共12帧）加报告名称（3帧）
	var nameReads int
	for _, op := range mock.Opcodes() {
		if op == CmdGetCurrencyChar {
			nameReads++
		}
	}
	assert.Equal(t, 15, nameReads)
}

// TestGetAccountingAllZeroRollsDropped 卷币计数全零时判定未启用，整体剔除
func TestGetAccountingAllZeroRollsDropped(t *testing.T) {
	c, mock := newTestController(t, Version5)
	mock.SeedCurrency(1, "EUR")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 100, 5.0, 10, CashTypeCoin)
	mock.SeedDenomination(1, 2, 200, 8.0, 4, CashTypeCoin)

	report, err := c.GetAccounting(1, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	for _, rec := range report.Records {
		assert.NotEqual(t, CashTypeCoinRoll, rec.CashType)
	}
}

// TestGetAccountingOldFirmwareSilentProbe 旧固件对卷币探测沉默，静默降级
func TestGetAccountingOldFirmwareSilentProbe(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 100, 5.0, 10, CashTypeCoin)

	report, err := c.GetAccounting(1, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, CashTypeCoin, report.Records[0].CashType)
}

// TestGetAccountingZeroWeightTerminates 数值非零但重量为零同样终止枚举
func TestGetAccountingZeroWeightTerminates(t *testing.T) {
	c, mock := newTestController(t, Version2)
	mock.SeedCurrency(1, "USD")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 100, 5.0, 10, CashTypeCoin)
	mock.SeedDenomination(1, 2, 200, 0, 4, CashTypeCoin)
	mock.SeedDenomination(1, 3, 500, 3.0, 1, CashTypeCoin)

	report, err := c.GetAccounting(1, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
}

// TestReconcileCoinRolls 卷币校正的纯函数行为
func TestReconcileCoinRolls(t *testing.T) {
	coin := DenominationRecord{Denomination: 100, Quantity: 5, Weight: 2.0, CashType: CashTypeCoin}
	rollZero := DenominationRecord{Denomination: 100, Quantity: 0, Weight: 2.0, CashType: CashTypeCoinRoll}
	rollLive := DenominationRecord{Denomination: 100, Quantity: 3, Weight: 2.0, CashType: CashTypeCoinRoll}

	t.Run("全零剔除", func(t *testing.T) {
		got := reconcileCoinRolls([]DenominationRecord{coin, rollZero, rollZero})
		require.Len(t, got, 1)
		assert.Equal(t, CashTypeCoin, got[0].CashType)
	})

	t.Run("存在非零全部保留", func(t *testing.T) {
		got := reconcileCoinRolls([]DenominationRecord{coin, rollZero, rollLive})
		assert.Len(t, got, 3)
	})

	t.Run("无卷币记录原样返回", func(t *testing.T) {
		got := reconcileCoinRolls([]DenominationRecord{coin})
		assert.Len(t, got, 1)
	})
}
