package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrWalletUnavailable 钱包被设置为拒绝转账
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrInsufficientFunds 付款方余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Wallet 内存托管后端，记录外部地址余额与托管账户余额
//
// 未启用链上出款时使用，状态不落盘。贡献从贡献者余额划入托管账户，
// 出款从托管账户划给收款方；OnReceive 在入账后、Transfer 返回前执行，
// 用于模拟收款方在收款时回调账本。
type Wallet struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	escrow   *big.Int

	// Reject 返回非 nil 时拒绝本次转账
	Reject func(to common.Address, amount *big.Int) error
	// OnReceive 收款回调，返回错误则撤销本次入账
	OnReceive func(ctx context.Context, to common.Address, amount *big.Int) error
}

// NewWallet 创建内存钱包
func NewWallet() *Wallet {
	return &Wallet{
		balances: make(map[common.Address]*big.Int),
		escrow:   new(big.Int),
	}
}

// Deposit 为外部地址充值，用于开发环境初始化余额
func (w *Wallet) Deposit(addr common.Address, amount *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.adjust(addr, amount)
}

// FundEscrow 补足托管账户余额，账本从事件日志恢复后调用
func (w *Wallet) FundEscrow(amount *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.escrow.Add(w.escrow, amount)
}

// Collect 实现 Collector：从贡献者余额划入托管账户，内存钱包不使用付款凭证
func (w *Wallet) Collect(_ context.Context, from common.Address, amount *big.Int, _ string) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.balanceOf(from).Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	moved := new(big.Int).Set(amount)
	w.adjust(from, new(big.Int).Neg(moved))
	w.escrow.Add(w.escrow, moved)

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.adjust(from, moved)
		w.escrow.Sub(w.escrow, moved)
	}, nil
}

// Transfer 实现 Transferor：从托管账户划给收款方
func (w *Wallet) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if w.Reject != nil {
		if err := w.Reject(to, amount); err != nil {
			return err
		}
	}

	w.mu.Lock()
	if w.escrow.Cmp(amount) < 0 {
		w.mu.Unlock()
		return ErrInsufficientFunds
	}
	w.escrow.Sub(w.escrow, amount)
	w.adjust(to, amount)
	w.mu.Unlock()

	if w.OnReceive != nil {
		if err := w.OnReceive(ctx, to, amount); err != nil {
			w.mu.Lock()
			w.adjust(to, new(big.Int).Neg(amount))
			w.escrow.Add(w.escrow, amount)
			w.mu.Unlock()
			return err
		}
	}
	return nil
}

// adjust 调用方持有 mu
func (w *Wallet) adjust(addr common.Address, delta *big.Int) {
	bal, ok := w.balances[addr]
	if !ok {
		bal = new(big.Int)
		w.balances[addr] = bal
	}
	bal.Add(bal, delta)
}

func (w *Wallet) balanceOf(addr common.Address) *big.Int {
	if bal, ok := w.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

// BalanceOf 查询外部地址余额
func (w *Wallet) BalanceOf(addr common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.balanceOf(addr))
}

// EscrowBalance 托管账户余额
func (w *Wallet) EscrowBalance() *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.escrow)
}
