package peer

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/logging"
	"github.com/jhon1466/PeerDrop/internal/transfer"
	"github.com/jhon1466/PeerDrop/internal/utils"
)

// ChannelLabel names the single data channel a session uses.
const ChannelLabel = "fileTransfer"

// DataChannel is satisfied by *webrtc.DataChannel.
type DataChannel interface {
	transfer.Channel
	Label() string
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(msg webrtc.DataChannelMessage))
	Close() error
}

// Connection is the subset of a peer connection the negotiator drives.
type Connection interface {
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	// OnICECandidate is only called for gathered candidates, never for the
	// end-of-gathering marker.
	OnICECandidate(f func(c webrtc.ICECandidateInit))
	OnConnectionStateChange(f func(s webrtc.PeerConnectionState))
	OnDataChannel(f func(dc DataChannel))
	Close() error
}

type Factory interface {
	NewConnection() (Connection, error)
}

type FactoryOption func(*webrtc.SettingEngine)

// WithLoopbackCandidates gathers candidates on the loopback interface, which
// lets two peers on one host connect without any network.
func WithLoopbackCandidates() FactoryOption {
	return func(se *webrtc.SettingEngine) {
		se.SetIncludeLoopbackCandidate(true)
	}
}

// PionFactory creates peer connections from the application config.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

func NewFactory(cfg *config.Config, opts ...FactoryOption) *PionFactory {
	se := webrtc.SettingEngine{}
	se.LoggerFactory = logging.NewPionFactory(log.Logger)
	for _, opt := range opts {
		opt(&se)
	}

	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config: ICEConfiguration(cfg),
	}
}

func (f *PionFactory) NewConnection() (Connection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionConnection{pc: pc}, nil
}

// ICEConfiguration builds the ICE server list and transport policy.
func ICEConfiguration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

type pionConnection struct {
	pc *webrtc.PeerConnection
}

func (c *pionConnection) CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (c *pionConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConnection) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *pionConnection) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		f(cand.ToJSON())
	})
}

func (c *pionConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(f)
}

func (c *pionConnection) OnDataChannel(f func(DataChannel)) {
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		f(dc)
	})
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}
