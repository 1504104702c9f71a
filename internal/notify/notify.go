// Package notify delivers committed game events to the world outside the
// table: in-process subscribers, Redis pub/sub, and the operational log.
package notify

import (
	"context"
	"errors"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// Publisher receives every batch of events a table commits, in order.
// Publish is called while the table holds its publish lock and must not call
// back into the table.
type Publisher interface {
	Publish(ctx context.Context, gameID string, events []log.GameEvent) error
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, gameID string, events []log.GameEvent) error

func (f Func) Publish(ctx context.Context, gameID string, events []log.GameEvent) error {
	return f(ctx, gameID, events)
}

// Multi fans a batch out to several publishers. Every publisher is called
// even when an earlier one fails.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, gameID string, events []log.GameEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, gameID, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, []log.GameEvent) error { return nil }
