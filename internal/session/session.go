// Package session ties a signaling connection, a peer negotiator and a
// transfer engine into one object owned by the caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/event"
	"github.com/jhon1466/PeerDrop/internal/logging"
	"github.com/jhon1466/PeerDrop/internal/peer"
	"github.com/jhon1466/PeerDrop/internal/signaling"
	"github.com/jhon1466/PeerDrop/internal/transfer"
)

var (
	ErrClosed        = errors.New("session closed")
	ErrAlreadyInRoom = errors.New("session already joined a room")
)

type Option func(*Session)

// WithFactory replaces the pion factory built from the config.
func WithFactory(f peer.Factory) Option {
	return func(s *Session) {
		s.factory = f
	}
}

type Session struct {
	cfg     *config.Config
	factory peer.Factory
	bus     *event.Bus
	log     zerolog.Logger

	client  *signaling.Client
	handler *signaling.Handler

	mu         sync.Mutex
	roomID     string
	negotiator *peer.Negotiator
	channel    peer.DataChannel
	engine     *transfer.Engine

	connected     chan struct{}
	connectedOnce sync.Once
	broken        chan struct{}
	brokenOnce    sync.Once
	brokenErr     error

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		bus:       event.NewBus(),
		log:       logging.Component("session"),
		connected: make(chan struct{}),
		broken:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = peer.NewFactory(cfg)
	}
	return s
}

// Events subscribes to session events. Subscribe before Connect to see every
// status update.
func (s *Session) Events() <-chan event.Event {
	return s.bus.Subscribe()
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Connect dials the signaling server.
func (s *Session) Connect(ctx context.Context) error {
	client := signaling.NewClient(s.cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to signaling server: %w", err)
	}

	s.client = client
	s.handler = signaling.NewHandler(client)
	go s.handler.Start()

	s.bus.Status("Connected to signaling server")
	return nil
}

// CreateRoom registers a room and starts negotiating as host. An empty
// roomID gets a generated code.
func (s *Session) CreateRoom(ctx context.Context, roomID string) (string, error) {
	if roomID == "" {
		roomID = signaling.GenerateRoomID()
	}
	id, err := signaling.ParseRoomInput(roomID)
	if err != nil {
		return "", err
	}

	return s.enter(ctx, peer.Host, signaling.TypeCreateRoom, id)
}

// JoinRoom joins an existing room and starts negotiating as joiner.
func (s *Session) JoinRoom(ctx context.Context, roomID string) (string, error) {
	id, err := signaling.ParseRoomInput(roomID)
	if err != nil {
		return "", err
	}

	return s.enter(ctx, peer.Joiner, signaling.TypeJoinRoom, id)
}

func (s *Session) enter(ctx context.Context, role peer.Role, msgType, id string) (string, error) {
	if s.client == nil {
		return "", signaling.ErrNotConnected
	}
	if s.RoomID() != "" {
		return "", ErrAlreadyInRoom
	}

	if err := s.client.Send(msgType, id, nil); err != nil {
		return "", err
	}

	reply := s.handler.RoomCreated
	if role == peer.Joiner {
		reply = s.handler.RoomJoined
	}

	select {
	case confirmed := <-reply:
		if confirmed != "" {
			id = confirmed
		}
	case err := <-s.handler.Error:
		return "", err
	case <-s.handler.Done:
		return "", signaling.ErrDisconnected
	case <-s.stop:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.log.Info().Str("room_id", id).Str("role", role.String()).Msg("entered room")
	if role == peer.Host {
		s.bus.Status(fmt.Sprintf("Room %s created", id))
	} else {
		s.bus.Status(fmt.Sprintf("Joined room %s", id))
	}

	n := peer.New(peer.Options{
		Role:      role,
		RoomID:    id,
		Factory:   s.factory,
		Signaler:  s.client,
		Bus:       s.bus,
		OnChannel: s.attach,
		OnOpen: func(peer.DataChannel) {
			s.connectedOnce.Do(func() { close(s.connected) })
		},
		OnClose: s.detach,
	})
	if err := n.Init(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.roomID = id
	s.negotiator = n
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(n)
	return id, nil
}

// attach installs a transfer engine on a freshly created data channel.
func (s *Session) attach(dc peer.DataChannel) {
	engine := transfer.NewEngine(dc, s.bus, s.cfg.MaxFileSize)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		engine.HandleMessage(msg.Data)
	})

	s.mu.Lock()
	old := s.engine
	s.channel = dc
	s.engine = engine
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// detach drops the engine bound to dc, discarding any partial file.
func (s *Session) detach(dc peer.DataChannel) {
	s.mu.Lock()
	engine := s.engine
	if engine == nil || s.channel != dc {
		s.mu.Unlock()
		return
	}
	s.channel = nil
	s.engine = nil
	s.mu.Unlock()

	s.log.Debug().Str("label", dc.Label()).Msg("data channel released")
	engine.Close()
}

func (s *Session) loop(n *peer.Negotiator) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return

		case <-s.handler.Done:
			if s.isConnected() {
				s.bus.Status("Signaling server connection closed")
			} else {
				s.abort(signaling.ErrDisconnected)
			}
			return

		case peerID := <-s.handler.PeerJoined:
			s.check(n.HandlePeerJoined(peerID))

		case msg := <-s.handler.Signal:
			s.handleSignal(n, msg)

		case <-s.handler.RoomClosed:
			s.log.Info().Msg("room closed by peer")
			s.bus.Publish(event.Event{Type: event.Disconnected, Text: "Peer left the room"})
			if !s.isConnected() {
				s.abort(signaling.ErrRoomClosed)
			}
			return

		case err := <-s.handler.Error:
			s.log.Warn().Err(err).Msg("signaling error")
			s.bus.Fail(err)
		}
	}
}

func (s *Session) handleSignal(n *peer.Negotiator, msg *signaling.Message) {
	switch msg.Type {
	case signaling.TypeOffer, signaling.TypeAnswer:
		var desc webrtc.SessionDescription
		if err := msg.DecodePayload(&desc); err != nil {
			s.check(&peer.NegotiationError{Op: "decode " + msg.Type, Err: err})
			return
		}
		if msg.Type == signaling.TypeOffer {
			s.check(n.HandleOffer(desc))
		} else {
			s.check(n.HandleAnswer(desc))
		}

	case signaling.TypeICECandidate:
		var c webrtc.ICECandidateInit
		if err := msg.DecodePayload(&c); err != nil {
			s.log.Warn().Err(err).Msg("dropping undecodable ICE candidate")
			return
		}
		n.HandleCandidate(c)
	}
}

// check reports negotiation failures. Out-of-order steps are only logged.
func (s *Session) check(err error) {
	if err == nil {
		return
	}

	var nerr *peer.NegotiationError
	if !errors.As(err, &nerr) {
		s.log.Warn().Err(err).Msg("ignoring signal")
		return
	}
	if nerr.Op == "decode offer" || nerr.Op == "decode answer" {
		s.bus.Fail(nerr)
	}
	s.abort(nerr)
}

func (s *Session) abort(err error) {
	s.brokenOnce.Do(func() {
		s.brokenErr = err
		close(s.broken)
	})
}

func (s *Session) isConnected() bool {
	select {
	case <-s.connected:
		return true
	default:
		return false
	}
}

// WaitConnected blocks until the data channel is open, negotiation fails or
// ctx ends.
func (s *Session) WaitConnected(ctx context.Context) error {
	select {
	case <-s.connected:
		return nil
	case <-s.broken:
		return s.brokenErr
	case <-s.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendFile transfers src to the peer over the open data channel.
func (s *Session) SendFile(ctx context.Context, src transfer.FileSource) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil || !s.isConnected() {
		return transfer.NewError("send file", transfer.ErrChannelNotOpen)
	}
	return engine.SendFile(ctx, src)
}

// Close tears down the peer connection and the signaling connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		n, engine := s.negotiator, s.engine
		s.mu.Unlock()

		if n != nil {
			n.Close()
		}
		if engine != nil {
			engine.Close()
		}
		if s.handler != nil {
			s.handler.Close()
		}
		if s.client != nil {
			s.client.Close()
		}

		s.bus.Close()
		s.wg.Wait()
	})
}
