// Package mq defines the message-queue seam §6 names as an alternative
// market-data transport: some deployments front the broker's own feed with
// a durable queue (so a restart replays missed ticks) instead of talking
// to the broker directly. redismq is the one concrete adapter this module
// ships.
package mq

import "context"

// Adapter publishes and consumes wire-format lines (internal/live/codec)
// on a single topic.
type Adapter interface {
	Connect(ctx context.Context) error
	Close() error

	Publish(ctx context.Context, line string) error

	// Subscribe starts delivering every published line to fn on its own
	// goroutine; it returns once the initial subscription succeeds (or
	// fails), not when the goroutine exits.
	Subscribe(ctx context.Context, fn func(line string)) error
}
