package events

import (
	"context"
	"sync"

	"evmsend/pkg/models"
	"evmsend/pkg/transfer"
)

// SubscriberBuffer is the channel capacity given to each subscriber.
const SubscriberBuffer = 100

// Hub fans form events out to the TUI, the API server and the journal.
type Hub struct {
	subscribers []Subscriber
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (h *Hub) Subscribe() Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(Subscriber, SubscriberBuffer)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish delivers event to every subscriber with room in its buffer.
// A full subscriber misses the event.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// StateObserver returns a transfer.Options.OnChange hook publishing every
// status change.
func (h *Hub) StateObserver() func(transfer.Status) {
	return func(s transfer.Status) {
		h.Publish(Event{Type: EventStateChanged, Data: s})
	}
}

// PublishResult announces a succeeded transfer. Other results are ignored.
func (h *Hub) PublishResult(res transfer.Result) {
	if res.State != transfer.StateSucceeded {
		return
	}
	h.Publish(Event{Type: EventTransferSucceeded, Data: RecordFromResult(res)})
}

// RecordFromResult converts a succeeded result to a journal entry.
func RecordFromResult(res transfer.Result) models.TransferRecord {
	return models.TransferRecord{
		Hash:        res.TxHash,
		From:        res.From,
		To:          res.Recipient,
		Amount:      res.Amount,
		Currency:    res.Network.Currency,
		ChainID:     res.Network.ChainID,
		Network:     res.Network.Name,
		ExplorerURL: res.ExplorerURL,
	}
}

// Journal persists succeeded transfers.
type Journal interface {
	Record(ctx context.Context, rec models.TransferRecord) error
}

// RecordTransfers writes every transfer_succeeded event to j until ctx ends.
// The subscription is in place when it returns; the returned channel closes
// once recording stops. onErr may be nil.
func RecordTransfers(ctx context.Context, h *Hub, j Journal, onErr func(error)) <-chan struct{} {
	sub := h.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer h.Unsubscribe(sub)
		record(ctx, sub, j, onErr)
	}()
	return done
}

func record(ctx context.Context, sub Subscriber, j Journal, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			rec, isRecord := ev.Data.(models.TransferRecord)
			if ev.Type != EventTransferSucceeded || !isRecord {
				continue
			}
			if err := j.Record(ctx, rec); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
