package handler

import (
	"net/http"

	"github.com/blues/cfledger/internal/logic"
	"github.com/blues/cfledger/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RecordHandler 镜像记录查询处理器
type RecordHandler struct {
	contributeLogic *logic.ContributeRecordLogic
	refundLogic     *logic.RefundRecordLogic
	settlementLogic *logic.SettlementRecordLogic
	eventLogic      *logic.EventLogic
}

// NewRecordHandler 创建镜像记录查询处理器
func NewRecordHandler(db *gorm.DB) *RecordHandler {
	return &RecordHandler{
		contributeLogic: logic.NewContributeRecordLogic(db),
		refundLogic:     logic.NewRefundRecordLogic(db),
		settlementLogic: logic.NewSettlementRecordLogic(db),
		eventLogic:      logic.NewEventLogic(db),
	}
}

// GetContributeRecords 获取活动贡献记录
func (h *RecordHandler) GetContributeRecords(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}
	page, pageSize := pageParams(c)

	records, total, err := h.contributeLogic.GetCampaignContributeRecords(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	PagedResponse(c, records, page, pageSize, total)
}

// GetRefundRecords 获取活动退款记录
func (h *RecordHandler) GetRefundRecords(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}
	page, pageSize := pageParams(c)

	records, total, err := h.refundLogic.GetCampaignRefunds(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	PagedResponse(c, records, page, pageSize, total)
}

// GetSettlementRecords 获取活动结算记录，可用 type=withdraw|fee 过滤
func (h *RecordHandler) GetSettlementRecords(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}
	page, pageSize := pageParams(c)

	records, total, err := h.settlementLogic.GetCampaignSettlements(int64(id), model.SettlementType(c.Query("type")), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	PagedResponse(c, records, page, pageSize, total)
}

// GetEvents 获取活动事件日志，可用 type 过滤
func (h *RecordHandler) GetEvents(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}
	page, pageSize := pageParams(c)

	events, total, err := h.eventLogic.GetEvents(int64(id), c.Query("type"), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	PagedResponse(c, events, page, pageSize, total)
}

// GetUserContributeRecords 获取用户贡献记录
func (h *RecordHandler) GetUserContributeRecords(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		ErrorResponse(c, http.StatusBadRequest, "无效的用户地址")
		return
	}
	page, pageSize := pageParams(c)

	records, total, err := h.contributeLogic.GetUserContributeRecords(common.HexToAddress(address).Hex(), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	PagedResponse(c, records, page, pageSize, total)
}
