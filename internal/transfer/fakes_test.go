package transfer

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// fakeChannel records frames and lets tests control buffering and failures.
type fakeChannel struct {
	mu        sync.Mutex
	state     webrtc.DataChannelState
	buffered  uint64
	sent      [][]byte
	sendCount int
	failOn    map[int]error
	// maxBefore is the highest buffered amount observed at a send attempt.
	maxBefore uint64
	// grow adds the frame length to buffered on every successful send.
	grow bool
	// afterSend runs outside the lock after each successful send.
	afterSend func(count int)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{state: webrtc.DataChannelStateOpen, failOn: map[int]error{}}
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	c.sendCount++
	count := c.sendCount
	if err, ok := c.failOn[count]; ok {
		c.mu.Unlock()
		return err
	}
	if c.buffered > c.maxBefore {
		c.maxBefore = c.buffered
	}
	if c.grow {
		c.buffered += uint64(len(data))
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	hook := c.afterSend
	c.mu.Unlock()

	if hook != nil {
		hook(count)
	}
	return nil
}

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *fakeChannel) ReadyState() webrtc.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) setBuffered(n uint64) {
	c.mu.Lock()
	c.buffered = n
	c.mu.Unlock()
}

func (c *fakeChannel) setState(s webrtc.DataChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *fakeChannel) frames() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Message, 0, len(c.sent))
	for _, data := range c.sent {
		msg, err := Decode(data)
		if err != nil {
			panic(err)
		}
		out = append(out, msg)
	}
	return out
}

// drainingChannel is a fakeChannel with buffered-amount-low support whose
// buffer is emptied by a background "network".
type drainingChannel struct {
	*fakeChannel
	threshold uint64
	onLow     func()
	stop      chan struct{}
}

func newDrainingChannel(rate uint64, every time.Duration) *drainingChannel {
	fc := newFakeChannel()
	fc.grow = true
	c := &drainingChannel{fakeChannel: fc, stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
			}

			c.mu.Lock()
			before := c.buffered
			if c.buffered > rate {
				c.buffered -= rate
			} else {
				c.buffered = 0
			}
			crossed := before > c.threshold && c.buffered <= c.threshold
			cb := c.onLow
			c.mu.Unlock()

			if crossed && cb != nil {
				cb()
			}
		}
	}()
	return c
}

func (c *drainingChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.mu.Lock()
	c.threshold = th
	c.mu.Unlock()
}

func (c *drainingChannel) OnBufferedAmountLow(f func()) {
	c.mu.Lock()
	c.onLow = f
	c.mu.Unlock()
}

func (c *drainingChannel) Close() {
	close(c.stop)
}

// pipeChannel delivers frames to a peer engine on a separate goroutine in
// send order, like an ordered reliable data channel.
type pipeChannel struct {
	queue chan []byte
	done  chan struct{}
}

func newPipeChannel() *pipeChannel {
	return &pipeChannel{queue: make(chan []byte, 1024), done: make(chan struct{})}
}

func (p *pipeChannel) connect(peer *Engine) {
	go func() {
		for {
			select {
			case <-p.done:
				return
			case data := <-p.queue:
				peer.HandleMessage(data)
			}
		}
	}()
}

func (p *pipeChannel) Send(data []byte) error {
	p.queue <- append([]byte(nil), data...)
	return nil
}

func (p *pipeChannel) BufferedAmount() uint64 { return 0 }

func (p *pipeChannel) ReadyState() webrtc.DataChannelState {
	return webrtc.DataChannelStateOpen
}

func (p *pipeChannel) Close() {
	close(p.done)
}
