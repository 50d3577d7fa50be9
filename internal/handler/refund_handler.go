package handler

import (
	"net/http"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/gin-gonic/gin"
)

// RefundHandler 退款处理器
type RefundHandler struct {
	ledger *ledger.Ledger
}

func NewRefundHandler(l *ledger.Ledger) *RefundHandler {
	return &RefundHandler{ledger: l}
}

// ClaimRefund 领取退款
func (h *RefundHandler) ClaimRefund(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}
	id, err := campaignID(c)
	if err != nil {
		return
	}

	receipt, err := h.ledger.ClaimRefund(c.Request.Context(), caller, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款成功", toReceiptResponse(receipt))
}
