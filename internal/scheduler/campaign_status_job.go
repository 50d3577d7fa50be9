package scheduler

import (
	"context"
	"time"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// CampaignSource 账本只读视图
type CampaignSource interface {
	ListCampaigns(ctx context.Context) []ledger.Campaign
	Now() time.Time
}

// FailedMarker 在镜像中标记失败活动，由 logic.CampaignLogic 实现
type FailedMarker interface {
	MarkFailed(ids []uint64) (int64, error)
}

// SweepResult 一次巡检的结果
type SweepResult struct {
	Active          int
	Successful      int
	Failed          []uint64
	Closed          int
	AwaitingRefunds int   // 失败且仍有托管资金的活动数
	Marked          int64 // 镜像中本次标记为失败的条数
}

// CampaignStatusJob 活动状态巡检任务
//
// 账本不会主动把过期未达标的活动转为失败，状态在读取时计算；
// 该任务定期计算有效状态并同步到展示镜像。
type CampaignStatusJob struct {
	source   CampaignSource
	marker   FailedMarker
	interval time.Duration
}

// NewCampaignStatusJob 创建活动状态巡检任务，marker 可为 nil
func NewCampaignStatusJob(source CampaignSource, marker FailedMarker, interval time.Duration) *CampaignStatusJob {
	return &CampaignStatusJob{
		source:   source,
		marker:   marker,
		interval: interval,
	}
}

// GetName 获取任务名称
func (j *CampaignStatusJob) GetName() string {
	return "campaign_status_sweeper"
}

// GetSchedule 获取调度配置
func (j *CampaignStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignStatusJob) Execute() {
	result, err := j.Sweep(context.Background())
	if err != nil {
		logger.Error("Campaign status sweep failed: %v", err)
		return
	}
	logger.Info("Campaign status sweep completed: active=%d successful=%d failed=%d closed=%d awaiting_refunds=%d marked=%d",
		result.Active, result.Successful, len(result.Failed), result.Closed, result.AwaitingRefunds, result.Marked)
}

// Sweep 计算所有活动的有效状态
func (j *CampaignStatusJob) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := j.source.Now()

	for _, c := range j.source.ListCampaigns(ctx) {
		switch ledger.EffectiveState(c, now) {
		case ledger.StateActive:
			result.Active++
		case ledger.StateSuccessful:
			result.Successful++
		case ledger.StateFailed:
			result.Failed = append(result.Failed, c.ID)
			if c.HeldBalance.Sign() > 0 {
				result.AwaitingRefunds++
			}
		case ledger.StateClosed:
			result.Closed++
		}
	}

	if j.marker != nil && len(result.Failed) > 0 {
		marked, err := j.marker.MarkFailed(result.Failed)
		if err != nil {
			return result, err
		}
		result.Marked = marked
	}
	return result, nil
}
