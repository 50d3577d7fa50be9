package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType 账本事件类型
type EventType string

const (
	EventCampaignCreated EventType = "CampaignCreated"
	EventContributed     EventType = "Contributed"
	EventWithdrawn       EventType = "Withdrawn"
	EventRefunded        EventType = "Refunded"
	EventCampaignClosed  EventType = "CampaignClosed"
	EventFeesCollected   EventType = "FeesCollected"
)

// Event 账本事件，只在操作提交后发布
//
// 各类型使用的字段：
//   - CampaignCreated: Actor(creator), Goal, Deadline, MetadataCID
//   - Contributed:     Actor(contributor), Amount, Total(newTotal), PaymentRef
//   - Withdrawn:       Actor(creator), Amount(net), Fee
//   - Refunded:        Actor(contributor), Amount
//   - CampaignClosed:  Actor(creator)
//   - FeesCollected:   Actor(fee receiver), Amount
type Event struct {
	Type        EventType      `json:"type"`
	Seq         uint64         `json:"seq"`
	CampaignID  uint64         `json:"campaignId"`
	Actor       common.Address `json:"actor"`
	Amount      *big.Int       `json:"amount,omitempty"`
	Fee         *big.Int       `json:"fee,omitempty"`
	Total       *big.Int       `json:"total,omitempty"`
	Goal        *big.Int       `json:"goal,omitempty"`
	Deadline    time.Time      `json:"deadline,omitempty"`
	MetadataCID string         `json:"metadataCid,omitempty"`
	PaymentRef  string         `json:"paymentRef,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// EventSink 事件订阅方
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// EventSinkFunc 函数适配器
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) Publish(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// EventRecorder 内存事件记录器，测试和调试使用
type EventRecorder struct {
	Events []Event
}

func (r *EventRecorder) Publish(_ context.Context, ev Event) {
	r.Events = append(r.Events, ev)
}

// Types 返回已记录事件的类型序列
func (r *EventRecorder) Types() []EventType {
	out := make([]EventType, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Type)
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
