package transfer

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
)

// Channel is the part of a data channel the engine writes to.
// *webrtc.DataChannel satisfies it.
type Channel interface {
	Send(data []byte) error
	BufferedAmount() uint64
	ReadyState() webrtc.DataChannelState
}

// lowNotifier is implemented by channels that can signal when their buffer
// drains below a threshold.
type lowNotifier interface {
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
}

// flow blocks the sender until the channel buffer has room.
type flow struct {
	ch           Channel
	low          chan struct{}
	pollInterval time.Duration
	pollCeiling  time.Duration
}

func newFlow(ch Channel) *flow {
	f := &flow{
		ch:           ch,
		pollInterval: PollInterval,
		pollCeiling:  PollCeiling,
	}

	if n, ok := ch.(lowNotifier); ok {
		f.low = make(chan struct{}, 1)
		n.SetBufferedAmountLowThreshold(HighWaterMark)
		n.OnBufferedAmountLow(func() {
			select {
			case f.low <- struct{}{}:
			default:
			}
		})
	}
	return f
}

// wait returns once the buffered amount is at or below limit or the channel
// is no longer open. Without a low-buffer notification it gives up waiting
// after pollCeiling and lets the caller proceed.
func (f *flow) wait(ctx context.Context, limit uint64) error {
	if f.ready(limit) {
		return nil
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	var ceiling <-chan time.Time
	if f.low == nil {
		timer := time.NewTimer(f.pollCeiling)
		defer timer.Stop()
		ceiling = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ceiling:
			return nil
		case <-f.low:
		case <-ticker.C:
		}
		if f.ready(limit) {
			return nil
		}
	}
}

func (f *flow) ready(limit uint64) bool {
	if f.ch.ReadyState() != webrtc.DataChannelStateOpen {
		return true
	}
	return f.ch.BufferedAmount() <= limit
}
