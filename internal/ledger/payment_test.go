package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func externalTotal(w *Wallet, addrs ...common.Address) *big.Int {
	total := w.EscrowBalance()
	for _, a := range addrs {
		total.Add(total, w.BalanceOf(a))
	}
	return total
}

func TestContributeDebitsContributor(t *testing.T) {
	f := newFixture(t, 250)
	id := f.create(t, 100)
	f.wallet.Deposit(alice, big.NewInt(150))
	everyone := []common.Address{creator, alice, bob, receiver}
	before := externalTotal(f.wallet, everyone...)

	if _, err := f.ledger.Contribute(context.Background(), alice, id, big.NewInt(100), ""); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	expectInt(t, "alice balance", f.wallet.BalanceOf(alice), 50)
	expectInt(t, "escrow", f.wallet.EscrowBalance(), 100)

	if _, err := f.ledger.Withdraw(context.Background(), creator, id); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := f.ledger.CollectFees(context.Background(), receiver, id); err != nil {
		t.Fatalf("CollectFees: %v", err)
	}
	expectInt(t, "creator balance", f.wallet.BalanceOf(creator), 98)
	expectInt(t, "receiver balance", f.wallet.BalanceOf(receiver), 2)
	expectInt(t, "escrow", f.wallet.EscrowBalance(), 0)

	if after := externalTotal(f.wallet, everyone...); after.Cmp(before) != 0 {
		t.Fatalf("external total = %s, want %s", after, before)
	}
}

func TestContributeWithoutFundsIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	id, err := f.ledger.CreateCampaign(context.Background(), mallory, big.NewInt(1), f.clock.t.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	_, err = f.ledger.Contribute(context.Background(), mallory, id, big.NewInt(1_000_000), "")
	expectCode(t, err, CodePaymentRejected)

	c := f.campaign(t, id)
	expectInt(t, "totalFunded", c.TotalFunded, 0)
	_, err = f.ledger.Withdraw(context.Background(), mallory, id)
	expectCode(t, err, CodeNothingToWithdraw)
	expectInt(t, "mallory balance", f.wallet.BalanceOf(mallory), 0)
	if len(f.recorder.Events) != 1 {
		t.Fatalf("rejected contribution emitted events: %v", f.recorder.Types())
	}
}

func TestPaymentRefAppliedOnce(t *testing.T) {
	f := newFixture(t, 0)
	id := f.create(t, 100)
	f.wallet.Deposit(alice, big.NewInt(20))

	if _, err := f.ledger.Contribute(context.Background(), alice, id, big.NewInt(10), "0xAB01"); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	_, err := f.ledger.Contribute(context.Background(), alice, id, big.NewInt(10), " 0xab01")
	expectCode(t, err, CodePaymentRejected)
	if Message(err) != "Payment already applied" {
		t.Fatalf("message = %q", Message(err))
	}
	expectInt(t, "alice balance", f.wallet.BalanceOf(alice), 10)
	expectInt(t, "totalFunded", f.campaign(t, id).TotalFunded, 10)

	if got := f.recorder.Events[1].PaymentRef; got != "0xab01" {
		t.Fatalf("payment ref = %q", got)
	}
}

func TestRevertedContributionReleasesPayment(t *testing.T) {
	f := newFixture(t, 0)
	id := f.create(t, 5)
	other := f.create(t, 50)
	f.contribute(t, id, alice, 5)
	f.wallet.Deposit(bob, big.NewInt(3))

	f.wallet.OnReceive = func(ctx context.Context, _ common.Address, _ *big.Int) error {
		if _, err := f.ledger.Contribute(ctx, bob, other, big.NewInt(3), "0xbeef"); err != nil {
			t.Errorf("nested Contribute: %v", err)
		}
		return ErrWalletUnavailable
	}
	_, err := f.ledger.Withdraw(context.Background(), creator, id)
	expectCode(t, err, CodeTransferFailure)
	expectInt(t, "bob balance", f.wallet.BalanceOf(bob), 3)

	f.wallet.OnReceive = nil
	if _, err := f.ledger.Contribute(context.Background(), bob, other, big.NewInt(3), "0xbeef"); err != nil {
		t.Fatalf("ref should be reusable after rollback: %v", err)
	}
}

// unconfirmedCustodian 出款交易总是广播成功但等不到回执
type unconfirmedCustodian struct {
	*Wallet
	transfers int
}

func (u *unconfirmedCustodian) Transfer(context.Context, common.Address, *big.Int) error {
	u.transfers++
	return &SubmittedError{TxHash: "0xdead", Err: context.DeadlineExceeded}
}

func TestUnconfirmedPayoutIsNotRolledBack(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	backend := &unconfirmedCustodian{Wallet: NewWallet()}
	recorder := &EventRecorder{}
	l, err := New(Config{FeeBasisPoints: 0, FeeReceiver: receiver}, backend, WithClock(clock.now), WithSinks(recorder))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	id, err := l.CreateCampaign(ctx, creator, big.NewInt(10), clock.t.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	backend.Deposit(alice, big.NewInt(10))
	if _, err := l.Contribute(ctx, alice, id, big.NewInt(10), ""); err != nil {
		t.Fatalf("Contribute: %v", err)
	}

	receipt, err := l.Withdraw(ctx, creator, id)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if receipt.PendingTx != "0xdead" {
		t.Fatalf("pending tx = %q", receipt.PendingTx)
	}
	c, _ := l.GetCampaign(ctx, id)
	if !c.Withdrawn || c.Status != StatusClosed {
		t.Fatalf("withdraw rolled back after broadcast: %+v", c)
	}

	_, err = l.Withdraw(ctx, creator, id)
	expectCode(t, err, CodeAlreadyClosed)
	if backend.transfers != 1 {
		t.Fatalf("payout broadcast %d times, want 1", backend.transfers)
	}
	if types := recorder.Types(); types[len(types)-1] != EventWithdrawn {
		t.Fatalf("events = %v", types)
	}
}

func sameCampaign(a, b Campaign) bool {
	ints := [][2]*big.Int{
		{a.Goal, b.Goal},
		{a.TotalFunded, b.TotalFunded},
		{a.FeeWithheld, b.FeeWithheld},
		{a.HeldBalance, b.HeldBalance},
		{a.NetWithdrawn, b.NetWithdrawn},
		{a.TotalRefunded, b.TotalRefunded},
		{a.FeeCollected, b.FeeCollected},
	}
	for _, pair := range ints {
		if pair[0].Cmp(pair[1]) != 0 {
			return false
		}
	}
	if (a.ClosedAt == nil) != (b.ClosedAt == nil) || (a.ClosedAt != nil && !a.ClosedAt.Equal(*b.ClosedAt)) {
		return false
	}
	return a.ID == b.ID && a.Creator == b.Creator && a.Deadline.Equal(b.Deadline) &&
		a.MetadataCID == b.MetadataCID && a.Status == b.Status && a.Withdrawn == b.Withdrawn &&
		a.CreatedAt.Equal(b.CreatedAt)
}

func TestRestoreRebuildsLedger(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	funded := f.create(t, 10)
	lapsed := f.create(t, 100)
	f.wallet.Deposit(alice, big.NewInt(6))
	if _, err := f.ledger.Contribute(ctx, alice, funded, big.NewInt(6), "0x01"); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	f.contribute(t, funded, bob, 4)
	f.contribute(t, lapsed, alice, 7)
	f.contribute(t, lapsed, bob, 2)
	if _, err := f.ledger.Withdraw(ctx, creator, funded); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := f.ledger.CollectFees(ctx, receiver, funded); err != nil {
		t.Fatalf("CollectFees: %v", err)
	}
	f.clock.advance(2 * time.Hour)
	if _, err := f.ledger.ClaimRefund(ctx, alice, lapsed); err != nil {
		t.Fatalf("ClaimRefund: %v", err)
	}
	if err := f.ledger.CloseCampaign(ctx, creator, lapsed); err != nil {
		t.Fatalf("CloseCampaign: %v", err)
	}

	wallet := NewWallet()
	restored, err := New(Config{FeeBasisPoints: 1000, FeeReceiver: receiver}, wallet, WithClock(f.clock.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := restored.Restore(f.recorder.Events); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	expectInt(t, "escrowed", restored.Escrowed(ctx), 2)

	want := f.ledger.ListCampaigns(ctx)
	got := restored.ListCampaigns(ctx)
	if len(got) != len(want) {
		t.Fatalf("restored %d campaigns, want %d", len(got), len(want))
	}
	for i := range want {
		if !sameCampaign(got[i], want[i]) {
			t.Fatalf("campaign %d:\n got %+v\nwant %+v", want[i].ID, got[i], want[i])
		}
	}
	owed, _ := restored.GetContribution(ctx, lapsed, bob)
	expectInt(t, "bob entry", owed, 2)
	if restored.LastSeq() != f.ledger.LastSeq() {
		t.Fatalf("last seq = %d, want %d", restored.LastSeq(), f.ledger.LastSeq())
	}

	// 重建后的账本继续分配序号与 ID，已入账的付款凭证不能再次使用
	_, err = restored.Contribute(ctx, alice, funded, big.NewInt(1), "0x01")
	expectCode(t, err, CodeCampaignClosed)
	_, err = restored.ClaimRefund(ctx, alice, lapsed)
	expectCode(t, err, CodeNothingToRefund)
	id, err := restored.CreateCampaign(ctx, creator, big.NewInt(1), f.clock.t.Add(time.Hour), "")
	if err != nil || id != 3 {
		t.Fatalf("CreateCampaign after restore = %d, %v", id, err)
	}
	if !restored.contributions.refUsed("0x01") {
		t.Fatalf("payment ref not restored")
	}

	// 内存钱包不落盘，补足托管余额后剩余退款可以出款
	wallet.FundEscrow(restored.Escrowed(ctx))
	if _, err := restored.ClaimRefund(ctx, bob, lapsed); err != nil {
		t.Fatalf("ClaimRefund after restore: %v", err)
	}
	expectInt(t, "bob balance", wallet.BalanceOf(bob), 2)
	expectInt(t, "escrow", wallet.EscrowBalance(), 0)
}

func TestRestoreRejectsInconsistentJournal(t *testing.T) {
	f := newFixture(t, 0)
	id := f.create(t, 10)
	f.contribute(t, id, alice, 4)
	f.clock.advance(time.Hour)
	if _, err := f.ledger.ClaimRefund(context.Background(), alice, id); err != nil {
		t.Fatalf("ClaimRefund: %v", err)
	}
	events := f.recorder.Events

	tampered := append([]Event(nil), events...)
	tampered[2].Amount = big.NewInt(40)

	for name, evs := range map[string][]Event{
		"gap":             {events[0], events[2]},
		"missing created": events[1:],
		"refund mismatch": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			l, err := New(Config{FeeReceiver: receiver}, NewWallet())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := l.Restore(evs); err == nil {
				t.Fatalf("expected restore error")
			}
			if l.GetCampaignCount(context.Background()) != 0 || l.LastSeq() != 0 {
				t.Fatalf("failed restore left state behind")
			}
			if err := l.Restore(events); err != nil {
				t.Fatalf("Restore after failure: %v", err)
			}
		})
	}
}

func TestRestoreRequiresEmptyLedger(t *testing.T) {
	f := newFixture(t, 0)
	f.create(t, 10)
	if err := f.ledger.Restore(f.recorder.Events); err == nil {
		t.Fatalf("expected error restoring into a non-empty ledger")
	}
}

func TestAuditDetectsEntryDrift(t *testing.T) {
	f := newFixture(t, 0)
	id := f.create(t, 10)
	f.contribute(t, id, alice, 4)
	if err := f.ledger.audit(); err != nil {
		t.Fatalf("audit: %v", err)
	}

	f.ledger.contributions.entries[id][bob] = big.NewInt(1)
	if err := f.ledger.audit(); err == nil {
		t.Fatalf("expected audit to flag entries that do not match totals")
	}
}
