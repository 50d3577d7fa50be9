package event

import (
	"context"
	"fmt"
	"strings"

	"github.com/blues/cfledger/internal/ethereum"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/blues/cfledger/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventStore 事件日志存储，由 logic.EventLogic 实现
type EventStore interface {
	CreateEvent(event *model.EventModel) error
	GetEventsAfter(seq uint64, limit int) ([]model.EventModel, error)
}

const loadBatchSize = 500

// JournalProcessor 将账本事件以 ABI 日志格式写入事件表，需先于 CampaignProcessor 注册
type JournalProcessor struct {
	codec *ethereum.EventCodec
	store EventStore
}

func NewJournalProcessor(codec *ethereum.EventCodec, store EventStore) *JournalProcessor {
	return &JournalProcessor{codec: codec, store: store}
}

// Process 编码并写入事件
func (p *JournalProcessor) Process(_ context.Context, ev ledger.Event) error {
	log, err := p.codec.Encode(ev)
	if err != nil {
		return err
	}

	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	record := &model.EventModel{
		Seq:        ev.Seq,
		EventType:  string(ev.Type),
		CampaignId: int64(ev.CampaignID),
		Actor:      ev.Actor.Hex(),
		Topics:     strings.Join(topics, ","),
		Data:       hexutil.Encode(log.Data),
		OccurredAt: ev.OccurredAt,
	}
	if err := p.store.CreateEvent(record); err != nil {
		return fmt.Errorf("journal event seq=%d: %w", ev.Seq, err)
	}
	return nil
}

// Restore 从事件表记录还原账本事件
func (p *JournalProcessor) Restore(record model.EventModel) (ledger.Event, error) {
	var topics []common.Hash
	for _, topic := range strings.Split(record.Topics, ",") {
		topics = append(topics, common.HexToHash(topic))
	}
	data, err := hexutil.Decode(record.Data)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("decode event data seq=%d: %w", record.Seq, err)
	}

	ev, err := p.codec.Decode(types.Log{Topics: topics, Data: data})
	if err != nil {
		return ledger.Event{}, err
	}
	ev.Seq = record.Seq
	ev.OccurredAt = record.OccurredAt
	return ev, nil
}

// Load 按序号读出全部事件日志，用于启动时恢复账本
func (p *JournalProcessor) Load() ([]ledger.Event, error) {
	var events []ledger.Event
	var after uint64
	for {
		records, err := p.store.GetEventsAfter(after, loadBatchSize)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			ev, err := p.Restore(record)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
			after = record.Seq
		}
		if len(records) < loadBatchSize {
			return events, nil
		}
	}
}
