package model

import (
	"time"
)

// EventModel 账本事件日志，Topics/Data 为 ABI 编码
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Seq        uint64    `json:"seq" gorm:"uniqueIndex;not null"`
	EventType  string    `json:"event_type" gorm:"not null;index"`
	CampaignId int64     `json:"campaign_id" gorm:"not null;index"`
	Actor      string    `json:"actor" gorm:"not null"`
	Topics     string    `json:"topics" gorm:"type:text"` // 逗号分隔的 hex topic
	Data       string    `json:"data" gorm:"type:text"`   // hex
	OccurredAt time.Time `json:"occurred_at"`
	Processed  bool      `json:"processed" gorm:"default:false"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
