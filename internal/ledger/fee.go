package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BasisPointsDenominator 手续费按万分比计算
const BasisPointsDenominator = 10000

// FeeVault 平台手续费金库，每个活动的手续费在提现时预扣，由收款方一次性领取
type FeeVault struct {
	receiver common.Address
	bps      uint32
}

func newFeeVault(receiver common.Address, bps uint32) *FeeVault {
	return &FeeVault{receiver: receiver, bps: bps}
}

// feeFor 计算手续费，向下取整
func (v *FeeVault) feeFor(total *big.Int) *big.Int {
	fee := new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(v.bps)))
	return fee.Quo(fee, big.NewInt(BasisPointsDenominator))
}

// withhold 预扣手续费
func (v *FeeVault) withhold(c *Campaign, fee *big.Int) {
	c.FeeWithheld.Add(c.FeeWithheld, fee)
}

// drain 清空待领取手续费并返回金额
func (v *FeeVault) drain(c *Campaign) *big.Int {
	amount := new(big.Int).Set(c.FeeWithheld)
	c.FeeWithheld.SetInt64(0)
	c.HeldBalance.Sub(c.HeldBalance, amount)
	c.FeeCollected.Add(c.FeeCollected, amount)
	return amount
}

func (v *FeeVault) checkCollect(c *Campaign, caller common.Address) error {
	if caller != v.receiver {
		return newError(CodeAccessDenied, c.ID, "Only fee receiver can collect fees")
	}
	if c.Status != StatusClosed {
		return newError(CodeNotClosed, c.ID, "")
	}
	if c.FeeWithheld.Sign() == 0 {
		return newError(CodeNothingToCollect, c.ID, "")
	}
	return nil
}
