package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/util"
)

const (
	eventBackfillBlocks = 100 // blocks to backfill on reconnect
	eventReconnectBase  = 2 * time.Second
	eventReconnectMax   = 60 * time.Second
	eventChannelBuffer  = 64
)

// Contract names used in ContractEvent.Contract.
const (
	ContractRegistry = "BountyRegistry"
	ContractEscrow   = "BountyEscrow"
	ContractToken    = "HakiToken"
)

// watchedEvents lists the events forwarded per contract.
var watchedEvents = map[string][]string{
	ContractRegistry: {"BountyCreated", "SubmissionRegistered"},
	ContractEscrow:   {"EscrowCreated", "EscrowReleased", "EscrowRefunded"},
	ContractToken:    {"ProvenanceLogged"},
}

// ContractEvent is a decoded contract log, or a simulated one from a mock contract.
type ContractEvent struct {
	Contract    string                 `json:"contract"`
	Name        string                 `json:"event"`
	BountyID    string                 `json:"bountyId,omitempty"`
	WorkflowID  string                 `json:"workflowId,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
	BlockNumber uint64                 `json:"blockNumber,omitempty"`
	TxHash      string                 `json:"txHash,omitempty"`
	Simulated   bool                   `json:"simulated,omitempty"`
	ObservedAt  time.Time              `json:"observedAt"`
}

func newMockEvent(contract, name string, bountyID *big.Int, fields map[string]interface{}) ContractEvent {
	ev := ContractEvent{
		Contract:   contract,
		Name:       name,
		Fields:     normalizeFields(fields),
		Simulated:  true,
		ObservedAt: time.Now().UTC(),
	}
	if bountyID != nil {
		ev.BountyID = bountyID.String()
	}
	return ev
}

// normalizeFields makes decoded values JSON friendly: addresses and hashes as
// hex, integers as decimal strings.
func normalizeFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case common.Address:
			out[k] = val.Hex()
		case [32]byte:
			out[k] = common.Hash(val).Hex()
		case common.Hash:
			out[k] = val.Hex()
		case *big.Int:
			out[k] = val.String()
		default:
			out[k] = v
		}
	}
	return out
}

type watchedContract struct {
	name    string
	address common.Address
	abi     abi.ABI
}

// EventWatcher subscribes to the HakiChain contract events over WebSocket,
// reconnecting with backoff and backfilling missed blocks.
type EventWatcher struct {
	baseClient *BaseClient
	contracts  []watchedContract
	events     chan ContractEvent

	lastBlock atomic.Uint64
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEventWatcher watches the contracts whose address is non-zero.
func NewEventWatcher(bc *BaseClient, registry, escrow, token common.Address) *EventWatcher {
	ew := &EventWatcher{
		baseClient: bc,
		events:     make(chan ContractEvent, eventChannelBuffer),
	}
	for _, c := range []watchedContract{
		{ContractRegistry, registry, registryABI},
		{ContractEscrow, escrow, escrowABI},
		{ContractToken, token, tokenABI},
	} {
		if c.address != (common.Address{}) {
			ew.contracts = append(ew.contracts, c)
		}
	}
	return ew
}

// Start launches one subscription goroutine per contract. Without a
// WebSocket endpoint it logs and returns; Events then never delivers.
func (ew *EventWatcher) Start(ctx context.Context) error {
	if ew.running.Load() {
		return nil
	}
	if ew.baseClient == nil || !ew.baseClient.HasWSConfig() {
		logging.Info("event watcher: no WebSocket endpoint configured, subscriptions disabled", logging.Component("events"))
		return nil
	}
	if len(ew.contracts) == 0 {
		logging.Info("event watcher: no contract addresses configured", logging.Component("events"))
		return nil
	}

	if blockNum, err := ew.baseClient.GetBlockNumber(ctx); err == nil {
		ew.lastBlock.Store(blockNum)
	}

	ctx, ew.cancel = context.WithCancel(ctx)
	ew.running.Store(true)

	for _, c := range ew.contracts {
		query, err := ew.filterQuery(c)
		if err != nil {
			logging.Warn("event watcher: skipping contract", logging.Component("events"), "contract", c.name, logging.Err(err))
			continue
		}
		ew.wg.Add(1)
		util.SafeGoWithName("event-watcher-"+c.name, func() {
			defer ew.wg.Done()
			ew.subscribeWithReconnect(ctx, c.name, query, func(log ethtypes.Log) {
				ev, err := decodeLog(c, log)
				if err != nil {
					logging.Debug("event watcher: undecodable log", "contract", c.name, logging.Err(err))
					return
				}
				ew.forward(ev)
			})
		})
	}

	logging.Info("event watcher started", logging.Component("events"), "block", ew.lastBlock.Load(), "contracts", len(ew.contracts))
	return nil
}

// Stop cancels subscriptions, waits for them and closes the Events channel.
func (ew *EventWatcher) Stop() {
	if !ew.running.Load() {
		return
	}
	ew.cancel()
	ew.wg.Wait()
	ew.running.Store(false)
	close(ew.events)

	logging.Info("event watcher stopped", logging.Component("events"))
}

func (ew *EventWatcher) Events() <-chan ContractEvent {
	return ew.events
}

func (ew *EventWatcher) forward(ev ContractEvent) {
	select {
	case ew.events <- ev:
	default:
		logging.Warn("event watcher: channel full, dropping event", "event", ev.Name)
	}
}

func (ew *EventWatcher) filterQuery(c watchedContract) (ethereum.FilterQuery, error) {
	var topics []common.Hash
	for _, name := range watchedEvents[c.name] {
		ev, ok := c.abi.Events[name]
		if !ok {
			return ethereum.FilterQuery{}, fmt.Errorf("event %s not in ABI", name)
		}
		topics = append(topics, ev.ID)
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{topics},
	}, nil
}

// decodeLog unpacks both the indexed topics and the data section of log.
func decodeLog(c watchedContract, log ethtypes.Log) (ContractEvent, error) {
	if len(log.Topics) == 0 {
		return ContractEvent{}, fmt.Errorf("log has no topics")
	}
	event, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return ContractEvent{}, err
	}

	fields := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := c.abi.UnpackIntoMap(fields, event.Name, log.Data); err != nil {
			return ContractEvent{}, fmt.Errorf("failed to unpack %s data: %w", event.Name, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return ContractEvent{}, fmt.Errorf("failed to parse %s topics: %w", event.Name, err)
	}

	ev := ContractEvent{
		Contract:    c.name,
		Name:        event.Name,
		Fields:      normalizeFields(fields),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		ObservedAt:  time.Now().UTC(),
	}
	if id, ok := fields["bountyId"].(*big.Int); ok {
		ev.BountyID = id.String()
	}
	if wf, ok := fields["workflowId"].([32]byte); ok {
		ev.WorkflowID = common.Hash(wf).Hex()
	}
	return ev, nil
}

// subscribeWithReconnect keeps one log subscription alive until ctx ends.
func (ew *EventWatcher) subscribeWithReconnect(
	ctx context.Context,
	name string,
	query ethereum.FilterQuery,
	handler func(ethtypes.Log),
) {
	delay := eventReconnectBase

	for {
		if ctx.Err() != nil {
			return
		}

		wsClient := ew.baseClient.WSClient()
		if wsClient == nil {
			if err := ew.baseClient.ReconnectWS(ctx); err != nil {
				logging.Warn("event watcher: WS reconnect failed", "subscription", name, logging.Err(err))
				if !sleepOrDone(ctx, delay) {
					return
				}
				delay = nextDelay(delay)
				continue
			}
			wsClient = ew.baseClient.WSClient()
		}

		ew.backfill(ctx, query, handler)

		logs := make(chan ethtypes.Log, 16)
		sub, err := wsClient.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			logging.Warn("event watcher: subscribe failed", "subscription", name, logging.Err(err))
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			_ = ew.baseClient.ReconnectWS(ctx)
			continue
		}

		delay = eventReconnectBase
		logging.Info("event watcher: subscribed", "subscription", name)

		stopped := ew.consume(ctx, name, sub, logs, handler)
		sub.Unsubscribe()
		if stopped {
			return
		}
		_ = ew.baseClient.ReconnectWS(ctx)
	}
}

// consume returns true when ctx ended and false when the subscription failed.
func (ew *EventWatcher) consume(
	ctx context.Context,
	name string,
	sub ethereum.Subscription,
	logs <-chan ethtypes.Log,
	handler func(ethtypes.Log),
) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case err := <-sub.Err():
			if err != nil {
				logging.Warn("event watcher: subscription error", "subscription", name, logging.Err(err))
			}
			return false
		case log := <-logs:
			ew.advance(log.BlockNumber)
			handler(log)
		}
	}
}

// backfill replays logs from the last seen block that arrived during a gap.
func (ew *EventWatcher) backfill(ctx context.Context, query ethereum.FilterQuery, handler func(ethtypes.Log)) {
	last := ew.lastBlock.Load()
	if last == 0 {
		return
	}
	client := ew.baseClient.Client()
	if client == nil {
		return
	}

	from := uint64(0)
	if last > eventBackfillBlocks {
		from = last - eventBackfillBlocks
	}
	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: query.Addresses,
		Topics:    query.Topics,
	})
	if err != nil {
		logging.Warn("event watcher: backfill failed", logging.Err(err))
		return
	}

	replayed := 0
	for _, log := range logs {
		if log.BlockNumber > last {
			handler(log)
			ew.advance(log.BlockNumber)
			replayed++
		}
	}
	if replayed > 0 {
		logging.Info("event watcher: backfilled events", "count", replayed, "from_block", from)
	}
}

func (ew *EventWatcher) advance(block uint64) {
	for {
		cur := ew.lastBlock.Load()
		if block <= cur || ew.lastBlock.CompareAndSwap(cur, block) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > eventReconnectMax {
		next = eventReconnectMax
	}
	return next
}
