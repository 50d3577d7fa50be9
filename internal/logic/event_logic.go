package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfledger/internal/model"
	"gorm.io/gorm"
)

// EventLogic 事件日志业务逻辑
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件日志业务逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// CreateEvent 写入事件日志，同一序号重复写入时忽略
func (e *EventLogic) CreateEvent(event *model.EventModel) error {
	if err := e.validateEvent(event); err != nil {
		return err
	}

	exists, err := e.CheckEventExists(event.Seq)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := e.db.Create(event).Error; err != nil {
		return fmt.Errorf("创建事件记录失败: %w", err)
	}
	return nil
}

// GetEvents 获取事件列表
func (e *EventLogic) GetEvents(campaignId int64, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	query := e.db.Model(&model.EventModel{})
	if campaignId > 0 {
		query = query.Where("campaign_id = ?", campaignId)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var events []model.EventModel
	total, err := paginate(query, page, pageSize, &events)
	if err != nil {
		return nil, 0, fmt.Errorf("获取事件列表失败: %w", err)
	}
	return events, total, nil
}

// GetEventsAfter 按序号升序获取 seq 之后的事件
func (e *EventLogic) GetEventsAfter(seq uint64, limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := e.db.Where("seq > ?", seq).
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取事件日志失败: %w", err)
	}
	return events, nil
}

// GetUnprocessedEvents 获取未处理的事件
func (e *EventLogic) GetUnprocessedEvents(limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := e.db.Where("processed = ?", false).
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取未处理事件失败: %w", err)
	}
	return events, nil
}

// GetLastSeq 获取最后写入的事件序号
func (e *EventLogic) GetLastSeq() (uint64, error) {
	var last model.EventModel
	err := e.db.Order("seq DESC").First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("获取最后事件序号失败: %w", err)
	}
	return last.Seq, nil
}

// CheckEventExists 检查事件是否已存在
func (e *EventLogic) CheckEventExists(seq uint64) (bool, error) {
	var count int64
	if err := e.db.Model(&model.EventModel{}).Where("seq = ?", seq).Count(&count).Error; err != nil {
		return false, fmt.Errorf("检查事件是否存在失败: %w", err)
	}
	return count > 0, nil
}

// validateEvent 验证事件数据
func (e *EventLogic) validateEvent(event *model.EventModel) error {
	if event.Seq == 0 {
		return errors.New("事件序号不能为空")
	}
	if event.EventType == "" {
		return errors.New("事件类型不能为空")
	}
	if event.Topics == "" {
		return errors.New("事件主题不能为空")
	}
	return nil
}
