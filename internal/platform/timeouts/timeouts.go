// Package timeouts defines shared timeout constants for the call session
// daemon, so every boundary uses the same budget.
package timeouts

import "time"

// StoreIO caps a single read or write against the session store.
const StoreIO = 2 * time.Second

// ChannelJoin caps a single join request to the audio channel.
const ChannelJoin = 5 * time.Second

// ChannelOccupancy caps the single occupancy query after a join.
const ChannelOccupancy = 3 * time.Second

// ChannelLeave caps a single leave request to the audio channel.
const ChannelLeave = 5 * time.Second

// ChannelDial caps establishing the signalling connection.
const ChannelDial = 10 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
