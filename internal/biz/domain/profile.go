package domain

// SenderProfile is the most recent counterparty seen on an account
type SenderProfile struct {
	ID             int64
	Name           string
	Username       string
	Verified       bool
	SubscribePrice int  // Never negative
	CanEarn        bool // Monetization-eligible; suppresses pattern alerts
}

// DisplayName returns "Name (@username)" with whatever parts are known
func (p *SenderProfile) DisplayName() string {
	if p == nil {
		return "unknown sender"
	}
	switch {
	case p.Name != "" && p.Username != "":
		return p.Name + " (@" + p.Username + ")"
	case p.Username != "":
		return "@" + p.Username
	case p.Name != "":
		return p.Name
	default:
		return "unknown sender"
	}
}
