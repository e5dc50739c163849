// Package event carries session notifications to whoever renders them.
package event

import (
	"sync"
)

type Type int

const (
	Connected Type = iota
	Disconnected
	Status
	Progress
	FileReceived
	TransferComplete
	Error
)

func (t Type) String() string {
	switch t {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Status:
		return "status"
	case Progress:
		return "progress"
	case FileReceived:
		return "file-received"
	case TransferComplete:
		return "transfer-complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// File is a fully reconstructed file handed to the receiver side.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

type Event struct {
	Type    Type
	Text    string
	Percent float64
	File    *File
	Err     error
}

const subscriberBuffer = 64

// Bus fans events out to subscribers. Progress events are dropped for a
// subscriber that is not keeping up; every other event is delivered.
type Bus struct {
	mu        sync.RWMutex
	subs      []chan Event
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewBus() *Bus {
	return &Bus{done: make(chan struct{})}
}

// Subscribe returns a channel that receives every event published after the
// call. The channel is closed by Close.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		if e.Type == Progress {
			select {
			case ch <- e:
			default:
			}
			continue
		}
		select {
		case ch <- e:
		case <-b.done:
			return
		}
	}
}

func (b *Bus) Status(text string) {
	b.Publish(Event{Type: Status, Text: text})
}

func (b *Bus) Progress(percent float64) {
	b.Publish(Event{Type: Progress, Percent: percent})
}

func (b *Bus) Fail(err error) {
	b.Publish(Event{Type: Error, Err: err, Text: err.Error()})
}

// Close unblocks pending publishers and closes every subscriber channel.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
