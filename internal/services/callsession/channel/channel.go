// Package channel defines the boundary to the real-time audio channel.
//
// The audio transport itself is opaque here: a client can join and leave a
// named channel and report how many remote participants are present.
package channel

import (
	"context"
	"errors"
)

// ErrClosed indicates the client connection is closed.
var ErrClosed = errors.New("channel client closed")

// Client joins, leaves, and inspects named audio channels.
type Client interface {
	Join(ctx context.Context, channelName string) error
	Leave(ctx context.Context, channelName string) error
	// Occupancy returns the number of remote participants in the channel.
	Occupancy(ctx context.Context, channelName string) (int, error)
}

// Muter is implemented by clients that can mute the local microphone.
type Muter interface {
	SetMuted(ctx context.Context, channelName string, muted bool) error
}

// TeardownHandler receives the name of a channel the remote side closed.
type TeardownHandler func(channelName string)

// TeardownNotifier is implemented by clients that report remote teardown.
type TeardownNotifier interface {
	OnTeardown(handler TeardownHandler)
}
