package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"evmsend/pkg/models"
	"evmsend/pkg/networks"
	"evmsend/pkg/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, rec models.TransferRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	assert.NotNil(t, sub)

	h.mu.RLock()
	assert.Equal(t, 1, len(h.subscribers))
	h.mu.RUnlock()

	h.Unsubscribe(sub)
	h.mu.RLock()
	assert.Equal(t, 0, len(h.subscribers))
	h.mu.RUnlock()

	_, open := <-sub
	assert.False(t, open)
}

func TestPublish_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe()
	defer h.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < SubscriberBuffer*2; i++ {
			h.Publish(Event{Type: EventNotification})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, slow, SubscriberBuffer)
}

func TestStateObserver(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	h.StateObserver()(transfer.Status{State: transfer.StateSubmitting, Loading: true})

	ev := <-sub
	assert.Equal(t, EventStateChanged, ev.Type)
	st, ok := ev.Data.(transfer.Status)
	require.True(t, ok)
	assert.Equal(t, transfer.StateSubmitting, st.State)
}

func TestPublishResult(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	h.PublishResult(transfer.Result{State: transfer.StateFailed, Err: errors.New("boom")})
	h.PublishResult(transfer.Result{State: transfer.StateIdle, Err: transfer.ErrDeclined})
	assert.Len(t, sub, 0)

	net := networks.Network{ChainID: 5, Name: "Goerli Testnet", Currency: "ETH", Decimals: 18}
	h.PublishResult(transfer.Result{
		State:       transfer.StateSucceeded,
		TxHash:      "0xabc",
		ExplorerURL: "https://goerli.etherscan.io/tx/0xabc",
		Network:     net,
		Amount:      "0.5",
		Recipient:   "0x0000000000000000000000000000000000000001",
		From:        "0x0000000000000000000000000000000000000002",
	})

	ev := <-sub
	assert.Equal(t, EventTransferSucceeded, ev.Type)
	rec, ok := ev.Data.(models.TransferRecord)
	require.True(t, ok)
	assert.Equal(t, "0xabc", rec.Hash)
	assert.Equal(t, "ETH", rec.Currency)
	assert.Equal(t, uint64(5), rec.ChainID)
	assert.Equal(t, "Goerli Testnet", rec.Network)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", rec.To)
}

func TestRecordTransfers(t *testing.T) {
	h := NewHub()
	j := new(MockJournal)
	recorded := make(chan struct{}, 2)
	j.On("Record", mock.MatchedBy(func(r models.TransferRecord) bool { return r.Hash == "0x1" })).
		Return(nil).Run(func(mock.Arguments) { recorded <- struct{}{} })
	j.On("Record", mock.MatchedBy(func(r models.TransferRecord) bool { return r.Hash == "0x2" })).
		Return(errors.New("disk full")).Run(func(mock.Arguments) { recorded <- struct{}{} })

	errs := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := RecordTransfers(ctx, h, j, func(err error) { errs <- err })

	// subscribed before returning, so nothing published from here is missed
	h.mu.RLock()
	require.Len(t, h.subscribers, 1)
	h.mu.RUnlock()

	h.Publish(Event{Type: EventStateChanged, Data: transfer.Status{}})
	h.Publish(Event{Type: EventTransferSucceeded, Data: models.TransferRecord{Hash: "0x1"}})
	h.Publish(Event{Type: EventTransferSucceeded, Data: models.TransferRecord{Hash: "0x2"}})

	for i := 0; i < 2; i++ {
		select {
		case <-recorded:
		case <-time.After(2 * time.Second):
			t.Fatal("journal not called")
		}
	}
	select {
	case err := <-errs:
		assert.EqualError(t, err, "disk full")
	case <-time.After(2 * time.Second):
		t.Fatal("error not reported")
	}

	cancel()
	<-done
	h.mu.RLock()
	assert.Empty(t, h.subscribers)
	h.mu.RUnlock()
	j.AssertExpectations(t)
	j.AssertNumberOfCalls(t, "Record", 2)
}
