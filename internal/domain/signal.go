package domain

// SignalKind is one of the four call-signaling message kinds relayed between
// two connections. The relay is a dumb forwarder: it validates the kind and
// nothing else.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
	SignalEnd          SignalKind = "end"
)

// ParseSignalKind maps a kind name to its SignalKind value.
func ParseSignalKind(name string) (SignalKind, bool) {
	switch SignalKind(name) {
	case SignalOffer, SignalAnswer, SignalICECandidate, SignalEnd:
		return SignalKind(name), true
	}
	return "", false
}

func (k SignalKind) String() string { return string(k) }

// Event returns the client-facing event name for a signaling frame.
func (k SignalKind) Event() string { return "signal." + string(k) }
