package gateway

import (
	"context"

	"github.com/mcdev12/retroboard/go/internal/retro/registry"
)

// Fanout hands a room delivery to whatever reaches every connection in the
// room.
type Fanout interface {
	Publish(ctx context.Context, d registry.Delivery) error
}

// LocalFanout delivers through this process's registry only. Delivery happens
// before Publish returns, so room events and sender-only replies reach a
// connection in the order they were produced.
type LocalFanout struct {
	registry *registry.Registry
}

// NewLocalFanout creates a single-instance Fanout.
func NewLocalFanout(reg *registry.Registry) *LocalFanout {
	return &LocalFanout{registry: reg}
}

func (f *LocalFanout) Publish(ctx context.Context, d registry.Delivery) error {
	f.registry.Deliver(d)
	return nil
}
