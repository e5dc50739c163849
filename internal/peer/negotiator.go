// Package peer drives offer/answer negotiation over a signaling connection
// and hands the resulting data channel to the caller.
package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/jhon1466/PeerDrop/internal/event"
	"github.com/jhon1466/PeerDrop/internal/logging"
	"github.com/jhon1466/PeerDrop/internal/signaling"
)

var (
	ErrNotInitialized = errors.New("negotiator not initialized")
	ErrWrongRole      = errors.New("operation not valid for this role")
	ErrUnexpectedStep = errors.New("unexpected negotiation step")
)

// NegotiationError reports a failed negotiation step. The negotiator can be
// re-initialized afterwards.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// Signaler sends a message to the other member of the room.
type Signaler interface {
	Send(msgType, roomID string, payload any) error
}

type Options struct {
	Role     Role
	RoomID   string
	Factory  Factory
	Signaler Signaler
	Bus      *event.Bus

	// OnChannel is called when the data channel is attached, before it opens,
	// so message handlers can be installed without missing frames.
	OnChannel func(dc DataChannel)
	// OnOpen is called once the data channel is usable.
	OnOpen func(dc DataChannel)
	// OnClose is called once when the session reaches a terminal state after
	// a data channel was attached.
	OnClose func(dc DataChannel)
}

type Negotiator struct {
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	state State
	pc    Connection
	dc    DataChannel
	// gen is bumped by Init and Close; callbacks of older connections compare
	// against it and become no-ops.
	gen       uint64
	remoteSet bool
	assigning bool
	pending   []webrtc.ICECandidateInit
}

func New(opts Options) *Negotiator {
	return &Negotiator{
		opts: opts,
		log: logging.Component("peer").With().
			Str("role", opts.Role.String()).
			Str("room_id", opts.RoomID).
			Logger(),
		state: Idle,
	}
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Negotiator) Role() Role {
	return n.opts.Role
}

// Init discards any previous session and creates a fresh peer connection.
func (n *Negotiator) Init() error {
	pc, err := n.opts.Factory.NewConnection()
	if err != nil {
		n.mu.Lock()
		n.state = Failed
		n.mu.Unlock()
		nerr := &NegotiationError{Op: "create peer connection", Err: err}
		n.report(nerr)
		return nerr
	}

	n.mu.Lock()
	oldPC, oldDC := n.pc, n.dc
	n.gen++
	gen := n.gen
	n.pc = pc
	n.dc = nil
	n.remoteSet = false
	n.assigning = false
	n.pending = nil
	n.state = SignalingReady
	n.mu.Unlock()

	closeQuietly(oldDC, oldPC)

	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if !n.current(gen) {
			return
		}
		if err := n.opts.Signaler.Send(signaling.TypeICECandidate, n.opts.RoomID, c); err != nil {
			n.log.Warn().Err(err).Msg("failed to send ICE candidate")
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		n.handleConnectionState(gen, s)
	})

	if n.opts.Role == Joiner {
		pc.OnDataChannel(func(dc DataChannel) {
			if dc.Label() != ChannelLabel {
				n.log.Warn().Str("label", dc.Label()).Msg("ignoring unexpected data channel")
				return
			}
			n.attachChannel(gen, dc)
		})
		n.transition(gen, AwaitingOffer, "Waiting for offer")
	} else {
		n.transition(gen, AwaitingPeer, "Waiting for peer to join")
	}
	return nil
}

// HandlePeerJoined runs the host side: data channel, offer, local description.
func (n *Negotiator) HandlePeerJoined(peerID string) error {
	pc, gen, err := n.begin(Host, AwaitingPeer, CreatingOffer)
	if err != nil {
		return err
	}
	n.log.Debug().Str("peer", peerID).Msg("peer joined, creating offer")
	n.opts.Bus.Status("Peer joined, negotiating connection")

	ordered := true
	dc, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return n.fail(gen, "create data channel", err)
	}
	n.attachChannel(gen, dc)

	offer, err := pc.CreateOffer()
	if err != nil {
		return n.fail(gen, "create offer", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return n.fail(gen, "set local description", err)
	}
	if err := n.opts.Signaler.Send(signaling.TypeOffer, n.opts.RoomID, offer); err != nil {
		return n.fail(gen, "send offer", err)
	}

	n.transition(gen, AwaitingAnswer, "Offer sent, waiting for answer")
	return nil
}

// HandleOffer runs the joiner side: remote description, candidate drain,
// answer.
func (n *Negotiator) HandleOffer(offer webrtc.SessionDescription) error {
	pc, gen, err := n.begin(Joiner, AwaitingOffer, CreatingAnswer)
	if err != nil {
		return err
	}

	if err := n.assignRemote(pc, gen, offer); err != nil {
		return err
	}

	answer, err := pc.CreateAnswer()
	if err != nil {
		return n.fail(gen, "create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return n.fail(gen, "set local description", err)
	}
	if err := n.opts.Signaler.Send(signaling.TypeAnswer, n.opts.RoomID, answer); err != nil {
		return n.fail(gen, "send answer", err)
	}

	n.transition(gen, IceNegotiating, "Answer sent, connecting")
	return nil
}

func (n *Negotiator) HandleAnswer(answer webrtc.SessionDescription) error {
	pc, gen, err := n.begin(Host, AwaitingAnswer, AwaitingAnswer)
	if err != nil {
		return err
	}

	if err := n.assignRemote(pc, gen, answer); err != nil {
		return err
	}

	n.transition(gen, IceNegotiating, "Answer received, connecting")
	return nil
}

// HandleCandidate applies c now if a remote description is in place and
// none is being assigned; otherwise it is buffered in arrival order.
func (n *Negotiator) HandleCandidate(c webrtc.ICECandidateInit) {
	n.mu.Lock()
	if n.pc == nil || !n.remoteSet || n.assigning {
		n.pending = append(n.pending, c)
		n.mu.Unlock()
		return
	}
	pc := n.pc
	n.mu.Unlock()

	n.apply(pc, c)
}

// begin checks role and state for a step and moves to next.
func (n *Negotiator) begin(role Role, want, next State) (Connection, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pc == nil {
		return nil, 0, ErrNotInitialized
	}
	if n.opts.Role != role {
		return nil, 0, ErrWrongRole
	}
	if n.state != want {
		return nil, 0, fmt.Errorf("%w: %s while %s", ErrUnexpectedStep, next, n.state)
	}
	n.state = next
	return n.pc, n.gen, nil
}

// assignRemote sets the remote description with the assigning flag raised,
// then drains the buffered candidates.
func (n *Negotiator) assignRemote(pc Connection, gen uint64, desc webrtc.SessionDescription) error {
	n.mu.Lock()
	n.assigning = true
	n.mu.Unlock()

	if err := pc.SetRemoteDescription(desc); err != nil {
		n.mu.Lock()
		if n.gen == gen {
			n.assigning = false
		}
		n.mu.Unlock()
		return n.fail(gen, "set remote description", err)
	}

	n.drain(gen)
	return nil
}

// drain applies buffered candidates in order. Candidates that arrive while
// draining are buffered too and picked up before the flag drops.
func (n *Negotiator) drain(gen uint64) {
	for {
		n.mu.Lock()
		if n.gen != gen {
			n.mu.Unlock()
			return
		}
		if len(n.pending) == 0 {
			n.remoteSet = true
			n.assigning = false
			n.mu.Unlock()
			return
		}
		batch, pc := n.pending, n.pc
		n.pending = nil
		n.mu.Unlock()

		n.log.Debug().Int("count", len(batch)).Msg("applying buffered ICE candidates")
		for _, c := range batch {
			n.apply(pc, c)
		}
	}
}

func (n *Negotiator) apply(pc Connection, c webrtc.ICECandidateInit) {
	if err := pc.AddICECandidate(c); err != nil {
		n.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("skipping ICE candidate")
	}
}

func (n *Negotiator) attachChannel(gen uint64, dc DataChannel) {
	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		_ = dc.Close()
		return
	}
	n.dc = dc
	n.mu.Unlock()

	if n.opts.OnChannel != nil {
		n.opts.OnChannel(dc)
	}

	dc.OnOpen(func() {
		if !n.current(gen) {
			return
		}
		n.log.Info().Msg("data channel open")
		n.transition(gen, Connected, "Connected to peer")
		n.opts.Bus.Publish(event.Event{Type: event.Connected, Text: "Connected to peer"})
		if n.opts.OnOpen != nil {
			n.opts.OnOpen(dc)
		}
	})
	dc.OnClose(func() {
		if !n.current(gen) {
			return
		}
		n.log.Info().Msg("data channel closed")
		n.disconnect(gen, Closed, "Data channel closed")
	})
}

func (n *Negotiator) handleConnectionState(gen uint64, s webrtc.PeerConnectionState) {
	if !n.current(gen) {
		return
	}
	n.log.Debug().Str("state", s.String()).Msg("peer connection state changed")

	switch s {
	case webrtc.PeerConnectionStateConnecting:
		n.opts.Bus.Status("Connecting to peer")
	case webrtc.PeerConnectionStateConnected:
		n.opts.Bus.Status("Peer connection established")
	case webrtc.PeerConnectionStateDisconnected:
		n.disconnect(gen, Disconnected, "Peer disconnected")
	case webrtc.PeerConnectionStateFailed:
		n.disconnect(gen, Failed, "Connection failed")
	case webrtc.PeerConnectionStateClosed:
		n.disconnect(gen, Closed, "Connection closed")
	}
}

// disconnect moves to a terminal state once and tells subscribers.
func (n *Negotiator) disconnect(gen uint64, to State, text string) {
	n.mu.Lock()
	if n.gen != gen || n.state.Terminal() {
		n.mu.Unlock()
		return
	}
	n.state = to
	dc := n.dc
	n.mu.Unlock()

	if dc != nil && n.opts.OnClose != nil {
		n.opts.OnClose(dc)
	}
	n.opts.Bus.Publish(event.Event{Type: event.Disconnected, Text: text})
}

func (n *Negotiator) transition(gen uint64, to State, status string) {
	n.mu.Lock()
	if n.gen != gen || n.state.Terminal() {
		n.mu.Unlock()
		return
	}
	from := n.state
	n.state = to
	n.mu.Unlock()

	n.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("negotiation state")
	if status != "" {
		n.opts.Bus.Status(status)
	}
}

func (n *Negotiator) fail(gen uint64, op string, err error) error {
	nerr := &NegotiationError{Op: op, Err: err}

	n.mu.Lock()
	stale := n.gen != gen
	if !stale {
		n.state = Failed
	}
	n.mu.Unlock()

	if !stale {
		n.report(nerr)
	}
	return nerr
}

func (n *Negotiator) report(err error) {
	n.log.Error().Err(err).Msg("negotiation failed")
	n.opts.Bus.Fail(err)
}

func (n *Negotiator) current(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen == gen
}

// Close tears the connection down. Callbacks of the closed connection are
// ignored from here on.
func (n *Negotiator) Close() {
	n.mu.Lock()
	pc, dc := n.pc, n.dc
	n.gen++
	n.pc = nil
	n.dc = nil
	n.pending = nil
	n.remoteSet = false
	n.assigning = false
	n.state = Closed
	n.mu.Unlock()

	closeQuietly(dc, pc)
}

func closeQuietly(dc DataChannel, pc Connection) {
	if dc != nil {
		_ = dc.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
}
