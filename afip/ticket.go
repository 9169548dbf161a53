package afip

import "time"

// Ticket is the WSAA access ticket. Token and Sign are always replaced together.
type Ticket struct {
	Token     string
	Sign      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

func (t Ticket) IsZero() bool {
	return t.Token == "" && t.Sign == ""
}

// ValidAt reports whether the ticket is usable at now with the given safety margin.
// The boundary instant itself is not valid.
func (t Ticket) ValidAt(now time.Time, margin time.Duration) bool {
	if t.Token == "" || t.Sign == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

func (t Ticket) sameAs(o Ticket) bool {
	return t.Token == o.Token && t.Sign == o.Sign
}
