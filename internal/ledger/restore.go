package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blues/cfledger/internal/logger"
)

// Restore 按序号重放事件日志，重建活动、贡献明细与手续费状态
//
// 只能在空账本上、对外服务前调用；重放不发布事件，也不移动外部资金。
// 序号必须从 1 开始连续，任何不一致都会使账本保持为空并返回错误。
func (l *Ledger) Restore(events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq != 0 || l.registry.count() != 0 {
		return fmt.Errorf("restore requires an empty ledger")
	}

	rev := l.journal.snapshot()
	fail := func(err error) error {
		l.journal.revertTo(rev)
		l.seq = 0
		return err
	}

	for _, ev := range events {
		if ev.Seq != l.seq+1 {
			return fail(fmt.Errorf("event journal gap: expected seq %d, got %d", l.seq+1, ev.Seq))
		}
		if err := l.apply(ev); err != nil {
			return fail(fmt.Errorf("replay %s seq=%d: %w", ev.Type, ev.Seq, err))
		}
		l.seq = ev.Seq
	}
	if err := l.audit(); err != nil {
		return fail(err)
	}
	l.journal.reset()

	logger.Info("ledger restored from %d event(s), %d campaign(s)", len(events), l.registry.count())
	return nil
}

// LastSeq 最近一次提交的事件序号
func (l *Ledger) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Escrowed 所有活动仍托管的资金合计，含未领取的手续费
func (l *Ledger) Escrowed(ctx context.Context) *big.Int {
	total := new(big.Int)
	for _, c := range l.ListCampaigns(ctx) {
		total.Add(total, c.HeldBalance)
	}
	return total
}

// apply 将一条已提交的事件重新作用到账本，不做业务前置校验
func (l *Ledger) apply(ev Event) error {
	if ev.Type == EventCampaignCreated {
		if ev.Goal == nil {
			return fmt.Errorf("missing goal")
		}
		c := l.registry.create(ev.Actor, ev.Goal, ev.Deadline, ev.MetadataCID, ev.OccurredAt)
		if c.ID != ev.CampaignID {
			return fmt.Errorf("campaign id %d, journal has %d", c.ID, ev.CampaignID)
		}
		return nil
	}

	c, err := l.registry.get(ev.CampaignID)
	if err != nil {
		return err
	}
	amount := ev.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	l.registry.touch(c)

	switch ev.Type {
	case EventContributed:
		l.contributions.claimRef(ev.PaymentRef, c.ID)
		l.contributions.add(c.ID, ev.Actor, amount)
		c.TotalFunded.Add(c.TotalFunded, amount)
		c.HeldBalance.Add(c.HeldBalance, amount)
		l.machine.afterContribution(c)
		if ev.Total != nil && ev.Total.Cmp(c.TotalFunded) != 0 {
			return fmt.Errorf("total %s, journal has %s", c.TotalFunded, ev.Total)
		}
	case EventWithdrawn:
		fee := ev.Fee
		if fee == nil {
			fee = new(big.Int)
		}
		l.vault.withhold(c, fee)
		c.Withdrawn = true
		l.machine.close(c, ev.OccurredAt)
		c.HeldBalance.Sub(c.HeldBalance, amount)
		c.NetWithdrawn.Add(c.NetWithdrawn, amount)
	case EventRefunded:
		owed := l.contributions.zero(c.ID, ev.Actor)
		if owed.Cmp(amount) != 0 {
			return fmt.Errorf("refund of %s to %s, entry holds %s", amount, ev.Actor.Hex(), owed)
		}
		c.HeldBalance.Sub(c.HeldBalance, owed)
		c.TotalRefunded.Add(c.TotalRefunded, owed)
	case EventCampaignClosed:
		l.machine.close(c, ev.OccurredAt)
	case EventFeesCollected:
		if drained := l.vault.drain(c); drained.Cmp(amount) != 0 {
			return fmt.Errorf("collected %s, withheld %s", amount, drained)
		}
	default:
		return fmt.Errorf("unknown event type %s", ev.Type)
	}
	return nil
}

// audit 校验每个活动的资金守恒，以及贡献明细合计 = 总筹款 - 已退款
func (l *Ledger) audit() error {
	for _, c := range l.registry.list() {
		if !c.Conserved() {
			return fmt.Errorf("campaign %d violates conservation", c.ID)
		}
		outstanding := new(big.Int).Sub(c.TotalFunded, c.TotalRefunded)
		if sum := l.contributions.sum(c.ID); sum.Cmp(outstanding) != 0 {
			return fmt.Errorf("campaign %d contribution entries sum to %s, expected %s", c.ID, sum, outstanding)
		}
	}
	return nil
}
