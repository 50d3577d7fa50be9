package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/blues/cfledger/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Config 账本配置，来自外部配置源，账本自身不修改
type Config struct {
	FeeBasisPoints uint32
	FeeReceiver    common.Address
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.FeeBasisPoints > BasisPointsDenominator {
		return fmt.Errorf("fee basis points %d exceeds %d", c.FeeBasisPoints, BasisPointsDenominator)
	}
	if c.FeeReceiver == (common.Address{}) {
		return fmt.Errorf("fee receiver is required")
	}
	return nil
}

// Option 账本可选项
type Option func(*Ledger)

// WithClock 替换时钟，测试中用于推进时间
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithSinks 注册事件订阅方
func WithSinks(sinks ...EventSink) Option {
	return func(l *Ledger) {
		l.sinks = append(l.sinks, sinks...)
	}
}

// Ledger 众筹资金账本
//
// 所有操作串行执行，每个操作是一个事务：要么全部提交并发布事件，要么回滚到操作前的状态。
// 出款时收款方可以在转账回调中重入账本（通过同一个 ctx），重入调用在外层事务内执行。
// 出款交易一旦广播，即使尚未确认也不再回滚。
type Ledger struct {
	mu            sync.Mutex
	journal       *journal
	registry      *Registry
	contributions *ContributionLedger
	machine       stateMachine
	guard         *TransferGuard
	vault         *FeeVault
	collector     Collector

	sinks []EventSink
	now   func() time.Time
	seq   uint64
}

// New 创建账本
func New(cfg Config, backend Custodian, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}
	if backend == nil {
		return nil, fmt.Errorf("transfer backend is required")
	}

	j := &journal{}
	l := &Ledger{
		journal:       j,
		registry:      newRegistry(j),
		contributions: newContributionLedger(j),
		guard:         newTransferGuard(j, backend),
		collector:     backend,
		vault:         newFeeVault(cfg.FeeReceiver, cfg.FeeBasisPoints),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type txKey struct{}

// txn 进行中的事务，挂在 ctx 上以识别重入调用
type txn struct {
	ledger *Ledger
	now    time.Time
	events []Event
}

func (t *txn) emit(ev Event) {
	ev.OccurredAt = t.now
	t.events = append(t.events, ev)
}

func (l *Ledger) currentTx(ctx context.Context) *txn {
	if ctx == nil {
		return nil
	}
	if tx, ok := ctx.Value(txKey{}).(*txn); ok && tx.ledger == l {
		return tx
	}
	return nil
}

// run 以事务方式执行 fn
func (l *Ledger) run(ctx context.Context, op string, fn func(ctx context.Context, tx *txn) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 重入调用：在外层事务内执行，失败只回滚自身的修改
	if tx := l.currentTx(ctx); tx != nil {
		rev := l.journal.snapshot()
		mark := len(tx.events)
		if err := fn(ctx, tx); err != nil {
			l.journal.revertTo(rev)
			tx.events = tx.events[:mark]
			logger.Warn("ledger %s (nested) rejected: %v", op, err)
			return err
		}
		return nil
	}

	events, err := l.commit(ctx, fn)
	if err != nil {
		logger.Warn("ledger %s rejected: %v", op, err)
		return err
	}

	logger.Info("ledger %s committed, %d event(s)", op, len(events))
	for _, ev := range events {
		for _, sink := range l.sinks {
			sink.Publish(ctx, ev)
		}
	}
	return nil
}

func (l *Ledger) commit(ctx context.Context, fn func(ctx context.Context, tx *txn) error) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &txn{ledger: l, now: l.now()}
	ctx = context.WithValue(ctx, txKey{}, tx)

	rev := l.journal.snapshot()
	if err := fn(ctx, tx); err != nil {
		l.journal.revertTo(rev)
		return nil, err
	}
	l.journal.reset()

	for i := range tx.events {
		l.seq++
		tx.events[i].Seq = l.seq
	}
	return tx.events, nil
}

// view 只读访问，重入时不再加锁
func (l *Ledger) view(ctx context.Context, fn func()) {
	if l.currentTx(ctx) != nil {
		fn()
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// CreateCampaign 创建众筹活动
func (l *Ledger) CreateCampaign(ctx context.Context, caller common.Address, goal *big.Int, deadline time.Time, metadataCID string) (uint64, error) {
	var id uint64
	err := l.run(ctx, "createCampaign", func(ctx context.Context, tx *txn) error {
		if caller == (common.Address{}) {
			return newError(CodeInvalidArgument, 0, "Creator address is empty")
		}
		if goal == nil || goal.Sign() <= 0 {
			return newError(CodeInvalidArgument, 0, "Goal must be greater than zero")
		}
		if !deadline.After(tx.now) {
			return newError(CodeInvalidArgument, 0, "Deadline must be in the future")
		}

		c := l.registry.create(caller, goal, deadline, strings.TrimSpace(metadataCID), tx.now)
		id = c.ID
		tx.emit(Event{
			Type:        EventCampaignCreated,
			CampaignID:  c.ID,
			Actor:       caller,
			Goal:        cloneInt(c.Goal),
			Deadline:    c.Deadline,
			MetadataCID: c.MetadataCID,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetCampaign 查询活动
func (l *Ledger) GetCampaign(ctx context.Context, id uint64) (Campaign, error) {
	var (
		out Campaign
		err error
	)
	l.view(ctx, func() {
		var c *Campaign
		c, err = l.registry.get(id)
		if err == nil {
			out = c.Clone()
		}
	})
	return out, err
}

// GetCampaignCount 已创建的活动数量，也是最新的活动 ID
func (l *Ledger) GetCampaignCount(ctx context.Context) uint64 {
	var n uint64
	l.view(ctx, func() {
		n = l.registry.count()
	})
	return n
}

// ListCampaigns 按 ID 升序返回全部活动
func (l *Ledger) ListCampaigns(ctx context.Context) []Campaign {
	var out []Campaign
	l.view(ctx, func() {
		out = l.registry.list()
	})
	return out
}

// GetContribution 查询某贡献者在活动中的累计贡献
func (l *Ledger) GetContribution(ctx context.Context, id uint64, contributor common.Address) (*big.Int, error) {
	var (
		out *big.Int
		err error
	)
	l.view(ctx, func() {
		if _, err = l.registry.get(id); err == nil {
			out = l.contributions.amountOf(id, contributor)
		}
	})
	return out, err
}

// ContributorCount 当前仍有贡献余额的贡献者数量
func (l *Ledger) ContributorCount(ctx context.Context, id uint64) int {
	var n int
	l.view(ctx, func() {
		n = l.contributions.contributors(id)
	})
	return n
}

// Contribute 向活动贡献资金，paymentRef 为付款凭证，同一凭证只能入账一次
func (l *Ledger) Contribute(ctx context.Context, caller common.Address, id uint64, amount *big.Int, paymentRef string) (*big.Int, error) {
	var newTotal *big.Int
	err := l.run(ctx, "contribute", func(ctx context.Context, tx *txn) error {
		c, err := l.registry.get(id)
		if err != nil {
			return err
		}
		// 截止后无论金额多少都返回 DeadlinePassed
		if err := l.machine.checkContribution(c, tx.now); err != nil {
			return err
		}
		if amount == nil || amount.Sign() == 0 {
			return newError(CodeZeroAmount, id, "")
		}
		if amount.Sign() < 0 {
			return newError(CodeInvalidArgument, id, "Amount must not be negative")
		}
		if caller == (common.Address{}) {
			return newError(CodeInvalidArgument, id, "Contributor address is empty")
		}
		if paymentRef != "" && l.contributions.refUsed(paymentRef) {
			return newError(CodePaymentRejected, id, "Payment already applied")
		}

		undo, err := l.collector.Collect(ctx, caller, new(big.Int).Set(amount), paymentRef)
		if err != nil {
			if CodeOf(err) != CodeUnknown {
				return err
			}
			return &Error{Code: CodePaymentRejected, CampaignID: id, Err: err}
		}
		if undo != nil {
			l.journal.append(undo)
		}

		l.registry.touch(c)
		l.contributions.claimRef(paymentRef, id)
		l.contributions.add(id, caller, amount)
		c.TotalFunded.Add(c.TotalFunded, amount)
		c.HeldBalance.Add(c.HeldBalance, amount)
		l.machine.afterContribution(c)

		newTotal = new(big.Int).Set(c.TotalFunded)
		tx.emit(Event{
			Type:       EventContributed,
			CampaignID: id,
			Actor:      caller,
			Amount:     cloneInt(amount),
			Total:      cloneInt(c.TotalFunded),
			PaymentRef: normalizeRef(paymentRef),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newTotal, nil
}

// Withdraw 创建者提取筹款（扣除平台手续费），同时关闭活动
func (l *Ledger) Withdraw(ctx context.Context, caller common.Address, id uint64) (Receipt, error) {
	var receipt Receipt
	err := l.run(ctx, "withdraw", func(ctx context.Context, tx *txn) error {
		c, err := l.registry.get(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return newError(CodeAccessDenied, id, "Only creator can withdraw")
		}
		if err := l.machine.checkWithdraw(c); err != nil {
			return err
		}

		fee := l.vault.feeFor(c.TotalFunded)
		net := new(big.Int).Sub(c.TotalFunded, fee)

		pendingTx, err := l.guard.Pay(ctx, id, c.Creator, net, func() {
			l.registry.touch(c)
			l.vault.withhold(c, fee)
			c.Withdrawn = true
			l.machine.close(c, tx.now)
			c.HeldBalance.Sub(c.HeldBalance, net)
			c.NetWithdrawn.Add(c.NetWithdrawn, net)
		})
		if err != nil {
			return err
		}

		receipt = Receipt{CampaignID: id, Recipient: c.Creator, Amount: net, Fee: fee, PendingTx: pendingTx}
		tx.emit(Event{
			Type:       EventWithdrawn,
			CampaignID: id,
			Actor:      c.Creator,
			Amount:     cloneInt(net),
			Fee:        cloneInt(fee),
		})
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// ClaimRefund 失败活动的贡献者领取退款
func (l *Ledger) ClaimRefund(ctx context.Context, caller common.Address, id uint64) (Receipt, error) {
	var receipt Receipt
	err := l.run(ctx, "claimRefund", func(ctx context.Context, tx *txn) error {
		c, err := l.registry.get(id)
		if err != nil {
			return err
		}
		if err := l.machine.checkRefund(c, tx.now); err != nil {
			return err
		}
		owed := l.contributions.amountOf(id, caller)
		if owed.Sign() == 0 {
			return newError(CodeNothingToRefund, id, "")
		}

		var amount *big.Int
		pendingTx, err := l.guard.Pay(ctx, id, caller, owed, func() {
			l.registry.touch(c)
			amount = l.contributions.zero(id, caller)
			c.HeldBalance.Sub(c.HeldBalance, amount)
			c.TotalRefunded.Add(c.TotalRefunded, amount)
		})
		if err != nil {
			return err
		}

		receipt = Receipt{CampaignID: id, Recipient: caller, Amount: amount, PendingTx: pendingTx}
		tx.emit(Event{
			Type:       EventRefunded,
			CampaignID: id,
			Actor:      caller,
			Amount:     cloneInt(amount),
		})
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// CloseCampaign 创建者关闭活动，不移动资金
func (l *Ledger) CloseCampaign(ctx context.Context, caller common.Address, id uint64) error {
	return l.run(ctx, "closeCampaign", func(ctx context.Context, tx *txn) error {
		c, err := l.registry.get(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return newError(CodeAccessDenied, id, "Only creator can close")
		}
		if c.Status == StatusClosed {
			return newError(CodeAlreadyClosed, id, "")
		}

		l.registry.touch(c)
		l.machine.close(c, tx.now)
		tx.emit(Event{Type: EventCampaignClosed, CampaignID: id, Actor: caller})
		return nil
	})
}

// CollectFees 手续费收款方领取某活动预扣的手续费
func (l *Ledger) CollectFees(ctx context.Context, caller common.Address, id uint64) (Receipt, error) {
	var receipt Receipt
	err := l.run(ctx, "collectFees", func(ctx context.Context, tx *txn) error {
		c, err := l.registry.get(id)
		if err != nil {
			return err
		}
		if err := l.vault.checkCollect(c, caller); err != nil {
			return err
		}

		var amount *big.Int
		pendingTx, err := l.guard.Pay(ctx, id, l.vault.receiver, new(big.Int).Set(c.FeeWithheld), func() {
			l.registry.touch(c)
			amount = l.vault.drain(c)
		})
		if err != nil {
			return err
		}

		receipt = Receipt{CampaignID: id, Recipient: l.vault.receiver, Amount: amount, PendingTx: pendingTx}
		tx.emit(Event{
			Type:       EventFeesCollected,
			CampaignID: id,
			Actor:      l.vault.receiver,
			Amount:     cloneInt(amount),
		})
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// GetFeeReceiver 手续费收款地址
func (l *Ledger) GetFeeReceiver() common.Address {
	return l.vault.receiver
}

// FeeBasisPoints 手续费率（万分比）
func (l *Ledger) FeeBasisPoints() uint32 {
	return l.vault.bps
}

// Now 账本时钟
func (l *Ledger) Now() time.Time {
	return l.now()
}
