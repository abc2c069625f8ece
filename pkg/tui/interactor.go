package tui

import (
	"context"

	"evmsend/pkg/events"
	"evmsend/pkg/transfer"
)

// confirmRequest is a pending yes/no question from a running submission.
type confirmRequest struct {
	prompt transfer.Prompt
	reply  chan bool
}

// Interactor bridges the form's blocking Confirm call to the bubbletea loop.
// Confirm hands a request to the program and waits for the user's answer.
// Notifications are queued for display and mirrored on the hub.
type Interactor struct {
	prompts chan confirmRequest
	notes   chan transfer.Notification
	hub     *events.Hub
}

func NewInteractor(hub *events.Hub) *Interactor {
	return &Interactor{
		prompts: make(chan confirmRequest),
		notes:   make(chan transfer.Notification, 16),
		hub:     hub,
	}
}

func (i *Interactor) Confirm(ctx context.Context, p transfer.Prompt) (bool, error) {
	req := confirmRequest{prompt: p, reply: make(chan bool, 1)}
	select {
	case i.prompts <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (i *Interactor) Notify(n transfer.Notification) {
	select {
	case i.notes <- n:
	default:
	}
	if i.hub != nil {
		i.hub.Publish(events.Event{Type: events.EventNotification, Data: n})
	}
}
