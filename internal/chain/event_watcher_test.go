package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeLog_EscrowCreated(t *testing.T) {
	event := escrowABI.Events["EscrowCreated"]
	amount := big.NewInt(1_000_000)

	var indexed []common.Hash
	var values []interface{}
	for _, arg := range event.Inputs {
		switch arg.Name {
		case "bountyId":
			if arg.Indexed {
				indexed = append(indexed, common.BigToHash(big.NewInt(42)))
			} else {
				values = append(values, big.NewInt(42))
			}
		case "funder":
			if arg.Indexed {
				indexed = append(indexed, common.BytesToHash(donor.Bytes()))
			} else {
				values = append(values, donor)
			}
		case "beneficiary":
			if arg.Indexed {
				indexed = append(indexed, common.BytesToHash(lawyer.Bytes()))
			} else {
				values = append(values, lawyer)
			}
		case "amount":
			values = append(values, amount)
		}
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	log := ethtypes.Log{
		Topics:      append([]common.Hash{event.ID}, indexed...),
		Data:        data,
		BlockNumber: 1234,
		TxHash:      common.HexToHash("0xabc"),
	}
	c := watchedContract{ContractEscrow, common.HexToAddress("0x01"), escrowABI}

	ev, err := decodeLog(c, log)
	if err != nil {
		t.Fatalf("decodeLog: %v", err)
	}
	if ev.Name != "EscrowCreated" || ev.BountyID != "42" || ev.BlockNumber != 1234 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Fields["amount"] != "1000000" {
		t.Errorf("amount = %v", ev.Fields["amount"])
	}
	if ev.Fields["beneficiary"] != lawyer.Hex() {
		t.Errorf("beneficiary = %v", ev.Fields["beneficiary"])
	}
}

func TestDecodeLog_NoTopics(t *testing.T) {
	c := watchedContract{ContractEscrow, common.Address{}, escrowABI}
	if _, err := decodeLog(c, ethtypes.Log{}); err == nil {
		t.Error("expected error for log without topics")
	}
}

func TestNewEventWatcher_SkipsZeroAddresses(t *testing.T) {
	ew := NewEventWatcher(nil, common.HexToAddress("0x01"), common.Address{}, common.HexToAddress("0x02"))
	if len(ew.contracts) != 2 {
		t.Errorf("expected 2 watched contracts, got %d", len(ew.contracts))
	}
	if ew.Events() == nil {
		t.Error("events channel should exist")
	}
}

func TestEventWatcher_StartWithoutWebSocket(t *testing.T) {
	ew := NewEventWatcher(NewBaseClient(nil, nil), common.HexToAddress("0x01"), common.Address{}, common.Address{})

	if err := ew.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ew.running.Load() {
		t.Error("watcher should not run without a WebSocket endpoint")
	}
	ew.Stop()
	ew.Stop()
}

func TestFilterQuery(t *testing.T) {
	ew := NewEventWatcher(nil, common.HexToAddress("0x01"), common.Address{}, common.Address{})
	q, err := ew.filterQuery(ew.contracts[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Topics) != 1 || len(q.Topics[0]) != len(watchedEvents[ContractRegistry]) {
		t.Errorf("unexpected topics %v", q.Topics)
	}
}

func TestNextDelay(t *testing.T) {
	if d := nextDelay(eventReconnectBase); d != 2*eventReconnectBase {
		t.Errorf("nextDelay = %v", d)
	}
	if d := nextDelay(eventReconnectMax); d != eventReconnectMax {
		t.Errorf("nextDelay should cap, got %v", d)
	}
}
