package ethereum

import (
	"math/big"
	"testing"
	"time"

	"github.com/blues/cfledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestEventCodecRoundTrip(t *testing.T) {
	codec, err := NewEventCodec()
	if err != nil {
		t.Fatalf("NewEventCodec: %v", err)
	}
	actor := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	deadline := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []ledger.Event{
		{Type: ledger.EventCampaignCreated, CampaignID: 3, Actor: actor, Goal: big.NewInt(1000), Deadline: deadline, MetadataCID: "bafy-meta"},
		{Type: ledger.EventContributed, CampaignID: 3, Actor: actor, Amount: big.NewInt(40), Total: big.NewInt(140), PaymentRef: "0xabc"},
		{Type: ledger.EventWithdrawn, CampaignID: 3, Actor: actor, Amount: big.NewInt(975), Fee: big.NewInt(25)},
		{Type: ledger.EventRefunded, CampaignID: 3, Actor: actor, Amount: big.NewInt(40)},
		{Type: ledger.EventCampaignClosed, CampaignID: 3, Actor: actor},
		{Type: ledger.EventFeesCollected, CampaignID: 3, Actor: actor, Amount: big.NewInt(25)},
	}
	for _, want := range tests {
		t.Run(string(want.Type), func(t *testing.T) {
			log, err := codec.Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if log.Topics[0] != crypto.Keccak256Hash([]byte(codec.abi.Events[string(want.Type)].Sig)) {
				t.Fatalf("topic0 is not the event signature hash")
			}

			got, err := codec.Decode(*log)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Type != want.Type || got.CampaignID != want.CampaignID || got.Actor != want.Actor {
				t.Fatalf("header mismatch: %+v", got)
			}
			for name, pair := range map[string][2]*big.Int{
				"amount": {got.Amount, want.Amount},
				"fee":    {got.Fee, want.Fee},
				"total":  {got.Total, want.Total},
				"goal":   {got.Goal, want.Goal},
			} {
				if (pair[0] == nil) != (pair[1] == nil) || (pair[0] != nil && pair[0].Cmp(pair[1]) != 0) {
					t.Fatalf("%s = %v, want %v", name, pair[0], pair[1])
				}
			}
			if !got.Deadline.Equal(want.Deadline) || got.MetadataCID != want.MetadataCID || got.PaymentRef != want.PaymentRef {
				t.Fatalf("deadline/cid/ref = %v %q %q", got.Deadline, got.MetadataCID, got.PaymentRef)
			}
		})
	}
}

func TestEventCodecRejectsUnknown(t *testing.T) {
	codec, err := NewEventCodec()
	if err != nil {
		t.Fatalf("NewEventCodec: %v", err)
	}
	if _, err := codec.Encode(ledger.Event{Type: "Paused"}); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
	if _, err := codec.Decode(types.Log{Topics: []common.Hash{{1}, {2}, {3}}}); err == nil {
		t.Fatalf("expected error for unknown signature")
	}
	if _, err := codec.Decode(types.Log{}); err == nil {
		t.Fatalf("expected error for missing topics")
	}
}
