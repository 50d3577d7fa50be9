package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status 活动的存储状态
type Status uint8

const (
	StatusActive     Status = iota // 进行中
	StatusSuccessful               // 已达标，仍可继续贡献
	StatusClosed                   // 已关闭，终态
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusSuccessful:
		return "SUCCESSFUL"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Campaign 众筹活动账本记录
type Campaign struct {
	ID          uint64         `json:"id"`
	Creator     common.Address `json:"creator"`
	Goal        *big.Int       `json:"goal"`
	Deadline    time.Time      `json:"deadline"`
	MetadataCID string         `json:"metadataCid"`

	TotalFunded *big.Int `json:"totalFunded"`
	Status      Status   `json:"status"`
	FeeWithheld *big.Int `json:"feeWithheld"`
	Withdrawn   bool     `json:"withdrawn"`

	// 资金守恒核对字段
	HeldBalance   *big.Int `json:"heldBalance"`
	NetWithdrawn  *big.Int `json:"netWithdrawn"`
	TotalRefunded *big.Int `json:"totalRefunded"`
	FeeCollected  *big.Int `json:"feeCollected"`

	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

func newCampaign(id uint64, creator common.Address, goal *big.Int, deadline time.Time, cid string, now time.Time) *Campaign {
	return &Campaign{
		ID:            id,
		Creator:       creator,
		Goal:          new(big.Int).Set(goal),
		Deadline:      deadline,
		MetadataCID:   cid,
		TotalFunded:   new(big.Int),
		Status:        StatusActive,
		FeeWithheld:   new(big.Int),
		HeldBalance:   new(big.Int),
		NetWithdrawn:  new(big.Int),
		TotalRefunded: new(big.Int),
		FeeCollected:  new(big.Int),
		CreatedAt:     now,
	}
}

// Clone 深拷贝，调用方拿到的记录不会与账本共享 big.Int
func (c *Campaign) Clone() Campaign {
	out := *c
	out.Goal = new(big.Int).Set(c.Goal)
	out.TotalFunded = new(big.Int).Set(c.TotalFunded)
	out.FeeWithheld = new(big.Int).Set(c.FeeWithheld)
	out.HeldBalance = new(big.Int).Set(c.HeldBalance)
	out.NetWithdrawn = new(big.Int).Set(c.NetWithdrawn)
	out.TotalRefunded = new(big.Int).Set(c.TotalRefunded)
	out.FeeCollected = new(big.Int).Set(c.FeeCollected)
	if c.ClosedAt != nil {
		t := *c.ClosedAt
		out.ClosedAt = &t
	}
	return out
}

// GoalReached 是否已达到目标金额
func (c *Campaign) GoalReached() bool {
	return c.TotalFunded.Cmp(c.Goal) >= 0
}

// Conserved 校验资金守恒：托管余额 = 总筹款 - 已提取净额 - 已退款 - 已收取手续费
func (c *Campaign) Conserved() bool {
	expected := new(big.Int).Set(c.TotalFunded)
	expected.Sub(expected, c.NetWithdrawn)
	expected.Sub(expected, c.TotalRefunded)
	expected.Sub(expected, c.FeeCollected)
	return expected.Cmp(c.HeldBalance) == 0 && c.HeldBalance.Sign() >= 0
}

// Receipt 一次资金划转的结果，PendingTx 非空表示出款交易已广播、待对账确认
type Receipt struct {
	CampaignID uint64         `json:"campaignId"`
	Recipient  common.Address `json:"recipient"`
	Amount     *big.Int       `json:"amount"`
	Fee        *big.Int       `json:"fee,omitempty"`
	PendingTx  string         `json:"pendingTx,omitempty"`
}
