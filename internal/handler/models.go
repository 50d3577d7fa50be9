package handler

import (
	"math/big"
	"time"

	"github.com/blues/cfledger/internal/ledger"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// PagedData 分页数据
type PagedData struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// 活动相关请求模型，金额均为 wei 的十进制字符串

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Goal        string `json:"goal" binding:"required"`
	Deadline    int64  `json:"deadline" binding:"required"` // unix 秒
	MetadataCID string `json:"metadataCid"`
}

// ContributeRequest 贡献请求
type ContributeRequest struct {
	Amount    string `json:"amount" binding:"required"`
	PaymentTx string `json:"payment_tx"` // 链上出款模式下必填：贡献者发往托管账户的交易哈希
}

// 活动相关响应模型

// CampaignResponse 活动响应模型
type CampaignResponse struct {
	ID            uint64     `json:"id"`
	Creator       string     `json:"creator"`
	Goal          string     `json:"goal"`
	Deadline      time.Time  `json:"deadline"`
	MetadataCID   string     `json:"metadataCid"`
	TotalFunded   string     `json:"totalFunded"`
	Status        string     `json:"status"`
	State         string     `json:"state"` // 有效状态，含 failed
	FeeWithheld   string     `json:"feeWithheld"`
	Withdrawn     bool       `json:"withdrawn"`
	HeldBalance   string     `json:"heldBalance"`
	TotalRefunded string     `json:"totalRefunded"`
	FeeCollected  string     `json:"feeCollected"`
	Contributors  int        `json:"contributors"`
	CreatedAt     time.Time  `json:"createdAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// CreateCampaignResponse 创建活动响应
type CreateCampaignResponse struct {
	ID uint64 `json:"id"`
}

// CountResponse 活动数量响应
type CountResponse struct {
	Count uint64 `json:"count"`
}

// ContributionResponse 贡献金额响应
type ContributionResponse struct {
	CampaignID  uint64 `json:"campaignId"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
}

// ReceiptResponse 资金划转响应
type ReceiptResponse struct {
	CampaignID uint64 `json:"campaignId"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Fee        string `json:"fee,omitempty"`
	PendingTx  string `json:"pending_tx,omitempty"` // 出款已广播、尚未确认
}

// FeeReceiverResponse 手续费配置响应
type FeeReceiverResponse struct {
	Receiver       string `json:"receiver"`
	FeeBasisPoints uint32 `json:"feeBasisPoints"`
}

func toCampaignResponse(c ledger.Campaign, state ledger.State, contributors int) CampaignResponse {
	return CampaignResponse{
		ID:            c.ID,
		Creator:       c.Creator.Hex(),
		Goal:          c.Goal.String(),
		Deadline:      c.Deadline,
		MetadataCID:   c.MetadataCID,
		TotalFunded:   c.TotalFunded.String(),
		Status:        c.Status.String(),
		State:         string(state),
		FeeWithheld:   c.FeeWithheld.String(),
		Withdrawn:     c.Withdrawn,
		HeldBalance:   c.HeldBalance.String(),
		TotalRefunded: c.TotalRefunded.String(),
		FeeCollected:  c.FeeCollected.String(),
		Contributors:  contributors,
		CreatedAt:     c.CreatedAt,
		ClosedAt:      c.ClosedAt,
	}
}

func toReceiptResponse(r ledger.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		CampaignID: r.CampaignID,
		Recipient:  r.Recipient.Hex(),
		Amount:     amountString(r.Amount),
		PendingTx:  r.PendingTx,
	}
	if r.Fee != nil {
		resp.Fee = r.Fee.String()
	}
	return resp
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
