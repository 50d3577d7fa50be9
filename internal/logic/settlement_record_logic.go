package logic

import (
	"fmt"

	"github.com/blues/cfledger/internal/model"
	"gorm.io/gorm"
)

// SettlementRecordLogic 结算记录业务逻辑
type SettlementRecordLogic struct {
	db *gorm.DB
}

func NewSettlementRecordLogic(db *gorm.DB) *SettlementRecordLogic {
	return &SettlementRecordLogic{db: db}
}

// GetCampaignSettlements 获取活动结算记录，settlementType 为空时返回全部
func (s *SettlementRecordLogic) GetCampaignSettlements(campaignId int64, settlementType model.SettlementType, page, pageSize int) ([]model.SettlementRecordModel, int64, error) {
	query := s.db.Model(&model.SettlementRecordModel{}).Where("campaign_id = ?", campaignId)
	if settlementType != "" {
		query = query.Where("settlement_type = ?", settlementType)
	}

	var records []model.SettlementRecordModel
	total, err := paginate(query, page, pageSize, &records)
	if err != nil {
		return nil, 0, fmt.Errorf("获取结算记录失败: %w", err)
	}
	return records, total, nil
}
