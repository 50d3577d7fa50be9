package handler

import (
	"net/http"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// ContributeHandler 贡献处理器
type ContributeHandler struct {
	ledger *ledger.Ledger
}

func NewContributeHandler(l *ledger.Ledger) *ContributeHandler {
	return &ContributeHandler{ledger: l}
}

// Contribute 向活动贡献资金
func (h *ContributeHandler) Contribute(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}
	id, err := campaignID(c)
	if err != nil {
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献金额")
		return
	}

	total, err := h.ledger.Contribute(c.Request.Context(), caller, id, amount, req.PaymentTx)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "贡献成功", ContributionResponse{
		CampaignID:  id,
		Contributor: caller.Hex(),
		Amount:      total.String(),
	})
}

// GetContribution 查询贡献者累计金额
func (h *ContributeHandler) GetContribution(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献者地址")
		return
	}
	contributor := common.HexToAddress(address)

	amount, err := h.ledger.GetContribution(c.Request.Context(), id, contributor)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", ContributionResponse{
		CampaignID:  id,
		Contributor: contributor.Hex(),
		Amount:      amount.String(),
	})
}
