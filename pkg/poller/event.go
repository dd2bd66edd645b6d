package poller

const (
	QuitSignal EventType = iota
	BridgeSourceConfirmed
	BridgeCompleted
	BridgeFailed
	PollTimeout
)

type EventType int

func (et EventType) String() string {
	switch et {
	case QuitSignal:
		return "QuitSignal"
	case BridgeSourceConfirmed:
		return "BridgeSourceConfirmed"
	case BridgeCompleted:
		return "BridgeCompleted"
	case BridgeFailed:
		return "BridgeFailed"
	case PollTimeout:
		return "PollTimeout"
	default:
		return "Unknown"
	}
}

type Event interface {
	Type() EventType
}

type QuitEvent struct{}

func (q QuitEvent) Type() EventType {
	return QuitSignal
}

// StatusEvent is emitted whenever a status check observed a transition-worthy
// change for a tracked bridge transaction, or its polling window expired.
type StatusEvent struct {
	TxID       string
	EventType  EventType
	DestTxHash string
	DestAmount string
	Reason     string
}

func (s StatusEvent) Type() EventType {
	return s.EventType
}
