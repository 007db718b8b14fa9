package domain

// Event is a decoded upstream frame. The concrete types below are the only
// implementations; consumers switch over them.
type Event interface {
	eventKind() string
}

// ChatMessage is an inbound or outbound chat message
type ChatMessage struct {
	Text     string
	Sender   *SenderProfile // Set only when the payload carried fromUser
	Outbound bool           // Sent by the monitored account itself (toUser only)
}

// Tip is a tip sent to the monitored account
type Tip struct {
	Amount   float64
	Currency string
	Sender   *SenderProfile
}

// Subscription is a new or renewed subscription
type Subscription struct {
	Price  float64
	Months int
	Sender *SenderProfile
}

// Purchase is a paid post or message unlock
type Purchase struct {
	Amount   float64
	Currency string
	Item     string
	Sender   *SenderProfile
}

// SystemNoise is a known frame with nothing to report
type SystemNoise struct {
	Kind string
}

// Unknown is an unparseable or unrecognized frame
type Unknown struct {
	EventType  string
	RawKeys    []string
	RawPayload string // Truncated for diagnostics
}

func (ChatMessage) eventKind() string  { return "chat_message" }
func (Tip) eventKind() string          { return "tip" }
func (Subscription) eventKind() string { return "subscription" }
func (Purchase) eventKind() string     { return "purchase" }
func (SystemNoise) eventKind() string  { return "system_noise" }
func (Unknown) eventKind() string      { return "unknown" }

// EventKind returns a stable label for metrics and logs
func EventKind(e Event) string {
	if e == nil {
		return "none"
	}
	return e.eventKind()
}
