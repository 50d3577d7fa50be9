package scheduler

import (
	"context"
	"time"

	"github.com/blues/cfledger/internal/event"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/blues/cfledger/internal/model"
	"github.com/go-co-op/gocron/v2"
)

// UnprocessedSource 未应用到镜像的事件日志
type UnprocessedSource interface {
	GetUnprocessedEvents(limit int) ([]model.EventModel, error)
}

// EventRestorer 从事件日志还原账本事件
type EventRestorer interface {
	Restore(record model.EventModel) (ledger.Event, error)
}

// EventReplayJob 重放镜像同步失败的事件
type EventReplayJob struct {
	source    UnprocessedSource
	restorer  EventRestorer
	processor event.Processor
	interval  time.Duration
	batchSize int
}

// NewEventReplayJob 创建事件重放任务
func NewEventReplayJob(source UnprocessedSource, restorer EventRestorer, processor event.Processor, interval time.Duration) *EventReplayJob {
	return &EventReplayJob{
		source:    source,
		restorer:  restorer,
		processor: processor,
		interval:  interval,
		batchSize: 100,
	}
}

// GetName 获取任务名称
func (j *EventReplayJob) GetName() string {
	return "event_replayer"
}

// GetSchedule 获取调度配置
func (j *EventReplayJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *EventReplayJob) Execute() {
	replayed, err := j.Replay(context.Background())
	if err != nil {
		logger.Error("Event replay failed after %d event(s): %v", replayed, err)
		return
	}
	if replayed > 0 {
		logger.Info("Replayed %d event(s) into mirror", replayed)
	}
}

// Replay 按序号重放未处理事件，遇到失败即停止以保持顺序
func (j *EventReplayJob) Replay(ctx context.Context) (int, error) {
	records, err := j.source.GetUnprocessedEvents(j.batchSize)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, record := range records {
		ev, err := j.restorer.Restore(record)
		if err != nil {
			return replayed, err
		}
		if err := j.processor.Process(ctx, ev); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}
