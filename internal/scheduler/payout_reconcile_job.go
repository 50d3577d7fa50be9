package scheduler

import (
	"context"
	"time"

	"github.com/blues/cfledger/internal/ethereum"
	"github.com/blues/cfledger/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Reconciler 跟进已广播未确认的出款，由 ethereum.Payout 实现
type Reconciler interface {
	Reconcile(ctx context.Context) (ethereum.ReconcileResult, error)
}

// PayoutReconcileJob 出款对账任务
type PayoutReconcileJob struct {
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
}

// NewPayoutReconcileJob 创建出款对账任务
func NewPayoutReconcileJob(reconciler Reconciler, interval time.Duration) *PayoutReconcileJob {
	return &PayoutReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		timeout:    interval,
	}
}

// GetName 获取任务名称
func (j *PayoutReconcileJob) GetName() string {
	return "payout_reconciler"
}

// GetSchedule 获取调度配置
func (j *PayoutReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *PayoutReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("Payout reconcile failed: %v", err)
		return
	}
	if result.Confirmed+result.Resent+result.Abandoned > 0 {
		logger.Info("Payout reconcile completed: confirmed=%d pending=%d resent=%d abandoned=%d",
			result.Confirmed, result.Pending, result.Resent, result.Abandoned)
	}
}
