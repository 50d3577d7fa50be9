package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/blues/cfledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Transferor 向外部地址划转资金的后端，实现方可以是链上转账或内存钱包
type Transferor interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Collector 收取贡献款的后端
//
// ref 为付款凭证（链上模式为入账交易哈希），返回的 undo 在账本回滚时调用，可为 nil。
type Collector interface {
	Collect(ctx context.Context, from common.Address, amount *big.Int, ref string) (undo func(), err error)
}

// Custodian 托管资金后端，负责入账与出款
type Custodian interface {
	Transferor
	Collector
}

// SubmittedError 出款交易已广播但未在期限内确认
//
// 交易随时可能上链，账本必须保留本次出款的记账修改，由对账任务跟进结果。
type SubmittedError struct {
	TxHash string
	Err    error
}

func (e *SubmittedError) Error() string {
	return "transfer " + e.TxHash + " submitted but unconfirmed: " + e.Err.Error()
}

func (e *SubmittedError) Unwrap() error {
	return e.Err
}

// TransferGuard 所有出款路径共用的防重入划转原语：
// 先提交记账修改，再发起外部转账，转账确定失败才整体回滚
type TransferGuard struct {
	journal *journal
	backend Transferor
}

func newTransferGuard(j *journal, backend Transferor) *TransferGuard {
	return &TransferGuard{journal: j, backend: backend}
}

// Pay 执行 effects 后向 to 转账 amount，返回未确认的交易哈希（已确认时为空）
func (g *TransferGuard) Pay(ctx context.Context, id uint64, to common.Address, amount *big.Int, effects func()) (string, error) {
	if to == (common.Address{}) {
		return "", newError(CodeInvalidArgument, id, "Recipient address is empty")
	}
	if amount == nil || amount.Sign() < 0 {
		return "", newError(CodeInvalidArgument, id, "Transfer amount is invalid")
	}

	rev := g.journal.snapshot()
	effects()

	// 净额为 0（例如手续费率 100%）时只记账不转账
	if amount.Sign() == 0 {
		return "", nil
	}

	err := g.backend.Transfer(ctx, to, new(big.Int).Set(amount))
	if err == nil {
		return "", nil
	}

	var submitted *SubmittedError
	if errors.As(err, &submitted) {
		logger.Warn("campaign %d: payout of %s to %s pending confirmation: %v", id, amount, to.Hex(), err)
		return submitted.TxHash, nil
	}

	g.journal.revertTo(rev)
	if errors.Is(err, ErrTransferFailure) {
		return "", err
	}
	return "", &Error{Code: CodeTransferFailure, CampaignID: id, Err: err}
}
