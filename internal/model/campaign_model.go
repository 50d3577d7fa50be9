package model

import (
	"time"
)

// CampaignModel 众筹活动展示镜像，权威状态在账本中
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"` // 与账本活动ID一致
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	CreatorAddress string `json:"creator_address" gorm:"not null;index"`
	MetadataCID    string `json:"metadata_cid"`

	// 众筹信息，金额以十进制字符串存储 (wei)
	GoalAmount    string `json:"goal_amount" gorm:"type:numeric(78,0);not null"`
	CurrentAmount string `json:"current_amount" gorm:"type:numeric(78,0);default:0"`
	FeeWithheld   string `json:"fee_withheld" gorm:"type:numeric(78,0);default:0"`
	FeeCollected  string `json:"fee_collected" gorm:"type:numeric(78,0);default:0"`

	// 时间信息
	Deadline time.Time  `json:"deadline" gorm:"not null"`
	ClosedAt *time.Time `json:"closed_at"`

	// 状态
	Status    CampaignStatus `json:"status" gorm:"default:'active';index"`
	Withdrawn bool           `json:"withdrawn" gorm:"default:false"`

	LastSeq uint64 `json:"last_seq"` // 已应用的最新事件序号
}

// CampaignStatus 活动状态
type CampaignStatus string

const (
	CampaignStatusActive  CampaignStatus = "active"  // 进行中
	CampaignStatusSuccess CampaignStatus = "success" // 已达标
	CampaignStatusFailed  CampaignStatus = "failed"  // 已过期未达标
	CampaignStatusClosed  CampaignStatus = "closed"  // 已关闭
)

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
