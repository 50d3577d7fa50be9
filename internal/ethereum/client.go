package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/blues/cfledger/internal/config"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend 托管账户所需的链上接口，*ethclient.Client 实现了它
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

var (
	// ErrTxReverted 交易已上链但执行失败
	ErrTxReverted = errors.New("payout transaction reverted")
	// ErrPaymentInvalid 贡献入账交易不满足要求
	ErrPaymentInvalid = errors.New("invalid payment transaction")
)

const (
	defaultGasLimit       = 21000
	defaultConfirmTimeout = 2 * time.Minute
	maxPayoutAttempts     = 3
)

// pendingPayout 已广播、等待对账的出款
type pendingPayout struct {
	to          common.Address
	amount      *big.Int
	submittedAt time.Time
	attempts    int
}

// Payout 托管账户客户端，实现 ledger.Custodian
type Payout struct {
	backend        Backend
	privateKey     *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	gasLimit       uint64
	confirmTimeout time.Duration

	mu sync.Mutex // 串行化 nonce 分配

	pendingMu sync.Mutex
	pending   map[common.Hash]*pendingPayout
}

func Init(cfg config.ChainConfig) (*Payout, error) {
	// 连接以太坊客户端
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	// 解析私钥
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	timeout := time.Duration(cfg.ConfirmTimeout) * time.Second
	return NewPayout(client, privateKey, big.NewInt(cfg.ChainId), cfg.GasLimit, timeout), nil
}

// NewPayout 使用已有连接创建托管账户客户端
func NewPayout(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64, confirmTimeout time.Duration) *Payout {
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	return &Payout{
		backend:        backend,
		privateKey:     key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		gasLimit:       gasLimit,
		confirmTimeout: confirmTimeout,
		pending:        make(map[common.Hash]*pendingPayout),
	}
}

// GetAccountAddress 获取托管账户地址
func (p *Payout) GetAccountAddress() common.Address {
	return p.from
}

// Transfer 签名并发送原生币转账，等待回执确认
//
// 等待与调用方的 ctx 解耦并受 confirmTimeout 约束；交易一旦广播，
// 未确认的结果以 *ledger.SubmittedError 返回，交由 Reconcile 跟进。
func (p *Payout) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.confirmTimeout)
	defer cancel()

	tx, err := p.send(ctx, to, amount)
	if err != nil {
		// 发送超时时无法确定节点是否已收到交易
		if tx != nil && errors.Is(err, context.DeadlineExceeded) {
			p.track(tx, to, amount, 1)
			return &ledger.SubmittedError{TxHash: tx.Hash().Hex(), Err: err}
		}
		return err
	}
	p.track(tx, to, amount, 1)

	receipt, err := bind.WaitMined(ctx, p.backend, tx)
	if err != nil {
		logger.Warn("Payout %s not confirmed within %s: %v", tx.Hash().Hex(), p.confirmTimeout, err)
		return &ledger.SubmittedError{TxHash: tx.Hash().Hex(), Err: err}
	}
	p.untrack(tx.Hash())
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}

	logger.Info("Payout confirmed: to=%s amount=%s tx=%s block=%d", to.Hex(), amount.String(), tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	return nil
}

// send 返回已签名的交易；广播失败时交易与错误一并返回
func (p *Payout) send(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nonce, err := p.backend.PendingNonceAt(ctx, p.from)
	if err != nil {
		return nil, fmt.Errorf("get pending nonce: %w", err)
	}
	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int).Set(amount),
		Gas:      p.gasLimit,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign payout: %w", err)
	}
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return signed, fmt.Errorf("send payout: %w", err)
	}

	logger.Debug("Payout sent: nonce=%d to=%s tx=%s", nonce, to.Hex(), signed.Hash().Hex())
	return signed, nil
}

// Collect 实现 ledger.Collector：校验贡献者发往托管账户的入账交易
//
// ref 为交易哈希，交易须已成功上链，发送方为 from，收款方为托管账户，金额等于 amount。
// 凭证防重由账本负责。
func (p *Payout) Collect(ctx context.Context, from common.Address, amount *big.Int, ref string) (func(), error) {
	ref = strings.TrimSpace(ref)
	if len(ref) != 2+2*common.HashLength || !strings.HasPrefix(ref, "0x") {
		return nil, fmt.Errorf("%w: payment tx hash required", ErrPaymentInvalid)
	}
	hash := common.HexToHash(ref)

	ctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	tx, isPending, err := p.backend.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup payment %s: %w", hash.Hex(), err)
	}
	if isPending {
		return nil, fmt.Errorf("%w: %s is still pending", ErrPaymentInvalid, hash.Hex())
	}
	receipt, err := p.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup payment receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted", ErrPaymentInvalid, hash.Hex())
	}

	if tx.To() == nil || *tx.To() != p.from {
		return nil, fmt.Errorf("%w: %s is not sent to escrow %s", ErrPaymentInvalid, hash.Hex(), p.from.Hex())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(p.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: recover sender: %v", ErrPaymentInvalid, err)
	}
	if sender != from {
		return nil, fmt.Errorf("%w: %s was sent by %s", ErrPaymentInvalid, hash.Hex(), sender.Hex())
	}
	if tx.Value().Cmp(amount) != 0 {
		return nil, fmt.Errorf("%w: %s carries %s, expected %s", ErrPaymentInvalid, hash.Hex(), tx.Value(), amount)
	}

	logger.Info("Payment verified: from=%s amount=%s tx=%s", from.Hex(), amount.String(), hash.Hex())
	return nil, nil
}

func (p *Payout) track(tx *types.Transaction, to common.Address, amount *big.Int, attempts int) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.pending[tx.Hash()] = &pendingPayout{
		to:          to,
		amount:      new(big.Int).Set(amount),
		submittedAt: time.Now(),
		attempts:    attempts,
	}
}

func (p *Payout) untrack(hash common.Hash) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	delete(p.pending, hash)
}

// Pending 待对账的出款交易
func (p *Payout) Pending() []common.Hash {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	out := make([]common.Hash, 0, len(p.pending))
	for hash := range p.pending {
		out = append(out, hash)
	}
	return out
}
