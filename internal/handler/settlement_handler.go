package handler

import (
	"net/http"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/gin-gonic/gin"
)

// SettlementHandler 结算处理器：创建者提款与平台手续费领取
type SettlementHandler struct {
	ledger *ledger.Ledger
}

func NewSettlementHandler(l *ledger.Ledger) *SettlementHandler {
	return &SettlementHandler{ledger: l}
}

// Withdraw 创建者提款
func (h *SettlementHandler) Withdraw(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}
	id, err := campaignID(c)
	if err != nil {
		return
	}

	receipt, err := h.ledger.Withdraw(c.Request.Context(), caller, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提款成功", toReceiptResponse(receipt))
}

// CollectFees 领取平台手续费
func (h *SettlementHandler) CollectFees(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}
	id, err := campaignID(c)
	if err != nil {
		return
	}

	receipt, err := h.ledger.CollectFees(c.Request.Context(), caller, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "手续费领取成功", toReceiptResponse(receipt))
}

// GetFeeReceiver 获取手续费收款地址
func (h *SettlementHandler) GetFeeReceiver(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", FeeReceiverResponse{
		Receiver:       h.ledger.GetFeeReceiver().Hex(),
		FeeBasisPoints: h.ledger.FeeBasisPoints(),
	})
}
