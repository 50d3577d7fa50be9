package logic

import (
	"fmt"

	"github.com/blues/cfledger/internal/model"
	"gorm.io/gorm"
)

// ContributeRecordLogic 贡献记录业务逻辑
type ContributeRecordLogic struct {
	db *gorm.DB
}

// NewContributeRecordLogic 创建贡献记录业务逻辑
func NewContributeRecordLogic(db *gorm.DB) *ContributeRecordLogic {
	return &ContributeRecordLogic{db: db}
}

// GetCampaignContributeRecords 获取活动贡献记录
func (c *ContributeRecordLogic) GetCampaignContributeRecords(campaignId int64, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	var records []model.ContributeRecordModel
	total, err := paginate(c.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", campaignId), page, pageSize, &records)
	if err != nil {
		return nil, 0, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	return records, total, nil
}

// GetUserContributeRecords 获取用户贡献记录
func (c *ContributeRecordLogic) GetUserContributeRecords(address string, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	var records []model.ContributeRecordModel
	total, err := paginate(c.db.Model(&model.ContributeRecordModel{}).Where("address = ?", address), page, pageSize, &records)
	if err != nil {
		return nil, 0, fmt.Errorf("获取用户贡献记录失败: %w", err)
	}
	return records, total, nil
}

// GetContributeStats 获取贡献统计信息
func (c *ContributeRecordLogic) GetContributeStats(campaignId int64) (map[string]interface{}, error) {
	var stats struct {
		TotalContributions int64
		UniqueContributors int64
	}

	// 总贡献记录数
	if err := c.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", campaignId).Count(&stats.TotalContributions).Error; err != nil {
		return nil, fmt.Errorf("获取总贡献记录数失败: %w", err)
	}

	// 唯一贡献者数量
	if err := c.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", campaignId).Distinct("address").Count(&stats.UniqueContributors).Error; err != nil {
		return nil, fmt.Errorf("获取唯一贡献者数量失败: %w", err)
	}

	return map[string]interface{}{
		"total_contributions": stats.TotalContributions,
		"unique_contributors": stats.UniqueContributors,
	}, nil
}

// paginate 统计总数并按序号倒序取一页
func paginate(query *gorm.DB, page, pageSize int, dest interface{}) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}

	page, pageSize = normalizePage(page, pageSize)
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Order("seq DESC").Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}
