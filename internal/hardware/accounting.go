package hardware

import (
	"time"

	"go.uber.org/zap"
)

// ============= 记账枚举 =============

// AccountingReport 一次记账读取的完整结果
type AccountingReport struct {
	CurrencySlot byte                 `json:"currency_slot"`
	CurrencyName string               `json:"currency_name"`
	Records      []DenominationRecord `json:"records"`
}

// Total 按最小货币单位汇总金额
func (r *AccountingReport) Total() int64 {
	var total int64
	for _, rec := range r.Records {
		total += int64(rec.Denomination) * int64(rec.Quantity)
	}
	return total
}

// enumerateDenominations 顺序枚举一个货币槽位的面额表。
// 设备不上报面额个数，以第一个数值≤0或重量≤0的序号为终止哨兵，
// 哨兵本身不计入结果。
// 槽位由调用方解析一次，这里按物理槽位直接寻址，不再逐面额重复解析。
func (c *ScaleController) enumerateDenominations(slot byte, timeout time.Duration) ([]DenominationRecord, error) {
	records := make([]DenominationRecord, 0, 16)

	for index := byte(1); index <= 0x3F; index++ {
		value, err := c.readDenominationValue(slot, index, timeout)
		if err != nil {
			return nil, err
		}
		if value <= 0 {
			break
		}

		weight, err := c.readDenominationWeight(slot, index, timeout)
		if err != nil {
			return nil, err
		}
		if weight <= 0 {
			break
		}

		quantity, err := c.GetDenominationQuantity(index, timeout)
		if err != nil {
			return nil, err
		}

		// 现金类型复用重量命令，单独往返读取标志位
		cashType, err := c.readCashType(slot, index, timeout)
		if err != nil {
			return nil, err
		}

		records = append(records, DenominationRecord{
			Denomination: value,
			Quantity:     quantity,
			Weight:       weight,
			CashType:     cashType,
		})

		// 只有硬币面额才可能成卷，纸币序号不探测
		if cashType != CashTypeCoin {
			continue
		}

		// 卷币计数在独立存储里探测。旧固件没有这块存储且不会拒绝
		// 未知命令，只会沉默，所以探测用短超时，失败静默降级为无卷币。
		rollQty, err := c.GetCoinRollQuantity(index, c.probeTimeout)
		if err != nil {
			c.logger.Debug("Coin roll probe silent, assuming no roll storage",
				zap.Uint8("index", index))
			continue
		}
		records = append(records, DenominationRecord{
			Denomination: value,
			Quantity:     rollQty,
			Weight:       weight,
			CashType:     CashTypeCoinRoll,
		})
	}

	return records, nil
}

// reconcileCoinRolls 卷币记录校正：仅当所有卷币计数全部为0时，
// 判定设备实际未启用卷币功能，整体剔除卷币记录。
// 只要有一条卷币计数非0，全部卷币记录（含计数为0的）原样保留。
func reconcileCoinRolls(records []DenominationRecord) []DenominationRecord {
	hasRoll := false
	for _, rec := range records {
		if rec.CashType == CashTypeCoinRoll && rec.Quantity != 0 {
			hasRoll = true
			break
		}
	}
	if hasRoll {
		return records
	}

	filtered := records[:0]
	for _, rec := range records {
		if rec.CashType != CashTypeCoinRoll {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// GetAccounting 读取一个货币槽位的完整记账快照。
// 槽位0先解析为物理槽位，使报告里的槽位号可直接用于后续写操作。
func (c *ScaleController) GetAccounting(slot byte, timeout time.Duration) (*AccountingReport, error) {
	if err := c.validateDenomSlot(slot); err != nil {
		return nil, err
	}
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	timeout = c.effectiveTimeout(timeout)

	slot, err := c.resolvePhysicalSlot(slot, timeout)
	if err != nil {
		return nil, err
	}

	name, err := c.GetCurrencyName(slot, timeout)
	if err != nil {
		return nil, err
	}

	records, err := c.enumerateDenominations(slot, timeout)
	if err != nil {
		return nil, err
	}
	records = reconcileCoinRolls(records)

	c.logger.Info("Accounting snapshot read",
		zap.Uint8("slot", slot),
		zap.String("currency", name),
		zap.Int("records", len(records)))

	return &AccountingReport{
		CurrencySlot: slot,
		CurrencyName: name,
		Records:      records,
	}, nil
}
