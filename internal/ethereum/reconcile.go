package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/cfledger/internal/logger"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReconcileResult 一轮出款对账的结果
type ReconcileResult struct {
	Confirmed int
	Pending   int
	Resent    int
	Abandoned int
}

// Reconcile 检查待对账出款的回执
//
// 成功上链的结清；执行失败的交易已终结，以新 nonce 重发，
// 超过 maxPayoutAttempts 后放弃并告警，需要人工处理。
// TODO: 长时间查不到回执的出款以相同 nonce、更高 gas price 替换
func (p *Payout) Reconcile(ctx context.Context) (ReconcileResult, error) {
	p.pendingMu.Lock()
	snapshot := make(map[common.Hash]*pendingPayout, len(p.pending))
	for hash, payout := range p.pending {
		snapshot[hash] = payout
	}
	p.pendingMu.Unlock()

	var result ReconcileResult
	for hash, payout := range snapshot {
		receipt, err := p.backend.TransactionReceipt(ctx, hash)
		if errors.Is(err, geth.NotFound) {
			result.Pending++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("get payout receipt %s: %w", hash.Hex(), err)
		}

		if receipt.Status == types.ReceiptStatusSuccessful {
			p.untrack(hash)
			result.Confirmed++
			logger.Info("Payout reconciled: to=%s amount=%s tx=%s", payout.to.Hex(), payout.amount, hash.Hex())
			continue
		}

		if payout.attempts >= maxPayoutAttempts {
			p.untrack(hash)
			result.Abandoned++
			logger.Error("Payout to %s of %s reverted %d times (last %s), manual settlement required",
				payout.to.Hex(), payout.amount, payout.attempts, hash.Hex())
			continue
		}

		tx, err := p.send(ctx, payout.to, payout.amount)
		if err != nil && (tx == nil || !errors.Is(err, context.DeadlineExceeded)) {
			// 重发未成功，保留原记录等待下一轮
			return result, fmt.Errorf("resend payout %s: %w", hash.Hex(), err)
		}
		p.untrack(hash)
		p.track(tx, payout.to, payout.amount, payout.attempts+1)
		result.Resent++
		logger.Warn("Payout %s reverted, resent as %s (attempt %d)", hash.Hex(), tx.Hash().Hex(), payout.attempts+1)
	}
	return result, nil
}
