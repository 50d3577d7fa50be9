package handler

import (
	"net/http"
	"time"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/gin-gonic/gin"
)

// CampaignHandler 活动处理器
type CampaignHandler struct {
	ledger *ledger.Ledger
}

func NewCampaignHandler(l *ledger.Ledger) *CampaignHandler {
	return &CampaignHandler{ledger: l}
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	goal, ok := parseAmount(req.Goal)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的目标金额")
		return
	}

	id, err := h.ledger.CreateCampaign(c.Request.Context(), caller, goal, time.Unix(req.Deadline, 0), req.MetadataCID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "活动创建成功", CreateCampaignResponse{ID: id})
}

// GetCampaign 获取活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := campaignID(c)
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	campaign, err := h.ledger.GetCampaign(ctx, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	state := ledger.EffectiveState(campaign, h.ledger.Now())
	SuccessResponse(c, http.StatusOK, "ok", toCampaignResponse(campaign, state, h.ledger.ContributorCount(ctx, id)))
}

// GetCampaignCount 获取活动数量
func (h *CampaignHandler) GetCampaignCount(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", CountResponse{Count: h.ledger.GetCampaignCount(c.Request.Context())})
}

// ListCampaigns 获取活动列表，可按有效状态过滤
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	filter := ledger.State(c.Query("state"))
	page, pageSize := pageParams(c)

	ctx := c.Request.Context()
	now := h.ledger.Now()
	var matched []CampaignResponse
	for _, campaign := range h.ledger.ListCampaigns(ctx) {
		state := ledger.EffectiveState(campaign, now)
		if filter != "" && state != filter {
			continue
		}
		matched = append(matched, toCampaignResponse(campaign, state, h.ledger.ContributorCount(ctx, campaign.ID)))
	}

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := matched[start:end]
	if items == nil {
		items = []CampaignResponse{}
	}
	PagedResponse(c, items, page, pageSize, total)
}

// CloseCampaign 关闭活动
func (h *CampaignHandler) CloseCampaign(c *gin.Context) {
	caller, err := callerAddress(c)
	if err != nil {
		return
	}
	id, err := campaignID(c)
	if err != nil {
		return
	}

	if err := h.ledger.CloseCampaign(c.Request.Context(), caller, id); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动已关闭", nil)
}
