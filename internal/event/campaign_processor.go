package event

import (
	"context"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/logger"
)

// CampaignMirror 活动镜像的写入接口，由 logic.CampaignLogic 实现
//
// Apply 须幂等，并在同一事务内标记事件日志已处理。
type CampaignMirror interface {
	Apply(ev ledger.Event) error
}

// CampaignProcessor 活动事件处理器，同步展示镜像
type CampaignProcessor struct {
	mirror CampaignMirror
}

// NewCampaignProcessor 创建活动事件处理器
func NewCampaignProcessor(mirror CampaignMirror) *CampaignProcessor {
	return &CampaignProcessor{mirror: mirror}
}

// Process 将事件应用到镜像
func (p *CampaignProcessor) Process(_ context.Context, ev ledger.Event) error {
	switch ev.Type {
	case ledger.EventCampaignCreated, ledger.EventContributed, ledger.EventRefunded,
		ledger.EventWithdrawn, ledger.EventCampaignClosed, ledger.EventFeesCollected:
	default:
		logger.Warn("Unknown campaign event type: %s", ev.Type)
		return nil
	}
	if err := p.mirror.Apply(ev); err != nil {
		return err
	}

	logger.Debug("Mirrored %s for campaign %d (seq %d)", ev.Type, ev.CampaignID, ev.Seq)
	return nil
}
