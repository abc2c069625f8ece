package server

import (
	"context"

	"evmsend/pkg/events"
	"evmsend/pkg/transfer"
)

type confirmKey struct{}

// WithConfirmation records whether the caller already approved the transfer
// carried by ctx.
func WithConfirmation(ctx context.Context, approved bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, approved)
}

func confirmed(ctx context.Context) bool {
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok
}

// Interactor answers confirmation prompts for API requests and publishes
// notifications on the hub. A request confirms either by its own flag or
// because autoConfirm is set.
type Interactor struct {
	hub         *events.Hub
	autoConfirm bool
}

func NewInteractor(hub *events.Hub, autoConfirm bool) *Interactor {
	return &Interactor{hub: hub, autoConfirm: autoConfirm}
}

func (i *Interactor) Confirm(ctx context.Context, p transfer.Prompt) (bool, error) {
	return i.autoConfirm || confirmed(ctx), nil
}

func (i *Interactor) Notify(n transfer.Notification) {
	if i.hub == nil {
		return
	}
	i.hub.Publish(events.Event{Type: events.EventNotification, Data: n})
}
