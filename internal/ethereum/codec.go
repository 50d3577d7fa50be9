package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 账本事件ABI定义，campaignId 与操作方地址作为索引参数
const ledgerABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "goal", "type": "uint256"},
			{"indexed": false, "name": "deadline", "type": "uint64"},
			{"indexed": false, "name": "metadataCid", "type": "string"}
		],
		"name": "CampaignCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "contributor", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "total", "type": "uint256"},
			{"indexed": false, "name": "paymentRef", "type": "string"}
		],
		"name": "Contributed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "fee", "type": "uint256"}
		],
		"name": "Withdrawn",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "contributor", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "Refunded",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"}
		],
		"name": "CampaignClosed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "receiver", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "FeesCollected",
		"type": "event"
	}
]`

// EventCodec 账本事件与日志格式 (topics + data) 互转
type EventCodec struct {
	abi abi.ABI
}

// NewEventCodec 解析账本事件ABI
func NewEventCodec() (*EventCodec, error) {
	parsed, err := abi.JSON(strings.NewReader(ledgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}
	return &EventCodec{abi: parsed}, nil
}

// Encode 将账本事件编码为日志
func (c *EventCodec) Encode(ev ledger.Event) (*types.Log, error) {
	event, ok := c.abi.Events[string(ev.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown ledger event: %s", ev.Type)
	}

	var values []interface{}
	switch ev.Type {
	case ledger.EventCampaignCreated:
		values = []interface{}{orZero(ev.Goal), uint64(ev.Deadline.Unix()), ev.MetadataCID}
	case ledger.EventContributed:
		values = []interface{}{orZero(ev.Amount), orZero(ev.Total), ev.PaymentRef}
	case ledger.EventWithdrawn:
		values = []interface{}{orZero(ev.Amount), orZero(ev.Fee)}
	case ledger.EventRefunded, ledger.EventFeesCollected:
		values = []interface{}{orZero(ev.Amount)}
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", ev.Type, err)
	}

	return &types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(ev.CampaignID)),
			common.BytesToHash(ev.Actor.Bytes()),
		},
		Data: data,
	}, nil
}

// Decode 解析日志为账本事件，Seq 与 OccurredAt 不在日志中
func (c *EventCodec) Decode(log types.Log) (ledger.Event, error) {
	if len(log.Topics) < 3 {
		return ledger.Event{}, fmt.Errorf("invalid ledger event: insufficient topics")
	}
	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return ledger.Event{}, fmt.Errorf("unknown event signature: %s", log.Topics[0].Hex())
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	ev := ledger.Event{
		Type:       ledger.EventType(event.Name),
		CampaignID: new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
		Actor:      common.BytesToAddress(log.Topics[2].Bytes()),
	}
	switch ev.Type {
	case ledger.EventCampaignCreated:
		ev.Goal = values[0].(*big.Int)
		ev.Deadline = time.Unix(int64(values[1].(uint64)), 0).UTC()
		ev.MetadataCID = values[2].(string)
	case ledger.EventContributed:
		ev.Amount = values[0].(*big.Int)
		ev.Total = values[1].(*big.Int)
		ev.PaymentRef = values[2].(string)
	case ledger.EventWithdrawn:
		ev.Amount = values[0].(*big.Int)
		ev.Fee = values[1].(*big.Int)
	case ledger.EventRefunded, ledger.EventFeesCollected:
		ev.Amount = values[0].(*big.Int)
	}
	return ev, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
