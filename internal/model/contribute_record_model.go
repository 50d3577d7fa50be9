package model

import (
	"time"
)

// ContributeRecordModel 贡献记录
type ContributeRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId int64  `json:"campaign_id" gorm:"not null;index"`
	Amount     string `json:"amount" gorm:"type:numeric(78,0);not null"`
	Total      string `json:"total" gorm:"type:numeric(78,0);not null"` // 该贡献者累计金额
	Address    string `json:"address" gorm:"not null;index"`
	PaymentTx  string `json:"payment_tx,omitempty"` // 链上入账交易哈希
	Seq        uint64 `json:"seq" gorm:"uniqueIndex"`
}

// TableName 自定义表名
func (ContributeRecordModel) TableName() string {
	return "contribute_record"
}
