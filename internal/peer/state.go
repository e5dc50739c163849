package peer

type Role int

const (
	Host Role = iota
	Joiner
)

func (r Role) String() string {
	if r == Host {
		return "host"
	}
	return "joiner"
}

// State is a step of the negotiation. Failed and Disconnected may be entered
// from any state that is not terminal.
type State int

const (
	Idle State = iota
	SignalingReady
	AwaitingPeer
	CreatingOffer
	AwaitingAnswer
	AwaitingOffer
	CreatingAnswer
	IceNegotiating
	Connected
	Closed
	Failed
	Disconnected
)

var stateNames = map[State]string{
	Idle:           "idle",
	SignalingReady: "signaling-ready",
	AwaitingPeer:   "awaiting-peer",
	CreatingOffer:  "creating-offer",
	AwaitingAnswer: "awaiting-answer",
	AwaitingOffer:  "awaiting-offer",
	CreatingAnswer: "creating-answer",
	IceNegotiating: "ice-negotiating",
	Connected:      "connected",
	Closed:         "closed",
	Failed:         "failed",
	Disconnected:   "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is expected without Init.
func (s State) Terminal() bool {
	return s == Closed || s == Failed || s == Disconnected
}
