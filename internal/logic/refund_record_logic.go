package logic

import (
	"fmt"

	"github.com/blues/cfledger/internal/model"
	"gorm.io/gorm"
)

// RefundRecordLogic 退款记录业务逻辑
type RefundRecordLogic struct {
	db *gorm.DB
}

// NewRefundRecordLogic 创建退款记录业务逻辑
func NewRefundRecordLogic(db *gorm.DB) *RefundRecordLogic {
	return &RefundRecordLogic{db: db}
}

// GetCampaignRefunds 获取活动退款记录
func (r *RefundRecordLogic) GetCampaignRefunds(campaignId int64, page, pageSize int) ([]model.RefundRecordModel, int64, error) {
	var records []model.RefundRecordModel
	total, err := paginate(r.db.Model(&model.RefundRecordModel{}).Where("campaign_id = ?", campaignId), page, pageSize, &records)
	if err != nil {
		return nil, 0, fmt.Errorf("获取退款记录失败: %w", err)
	}
	return records, total, nil
}
