package model

import (
	"time"
)

// SettlementRecordModel 结算记录，包括创建者提款和平台手续费领取
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId     int64          `json:"campaign_id" gorm:"not null;index"`
	Recipient      string         `json:"recipient" gorm:"not null"`
	Amount         string         `json:"amount" gorm:"type:numeric(78,0);not null"` // 实际到账金额
	PlatformFee    string         `json:"platform_fee" gorm:"type:numeric(78,0);default:0"`
	SettlementType SettlementType `json:"settlement_type" gorm:"not null"`
	Seq            uint64         `json:"seq" gorm:"uniqueIndex"`
	SettlementTime time.Time      `json:"settlement_time"`
}

// SettlementType 结算类型
type SettlementType string

const (
	SettlementTypeWithdraw SettlementType = "withdraw" // 创建者提款
	SettlementTypeFee      SettlementType = "fee"      // 平台手续费
)

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
