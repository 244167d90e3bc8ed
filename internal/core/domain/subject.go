package domain

// AnonymousFallbackID is used when an anonymous event arrives without a
// client-generated identifier.
const AnonymousFallbackID = "0"

// Subject is the actor an event is attributed to: an identified user
// (email or userId present) or an anonymous visitor.
type Subject struct {
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	UserID      string `json:"userId,omitempty"`
	AnonymousID string `json:"anonymousId,omitempty"`
	Data        Value  `json:"data,omitzero"`
}

// AnonymousSubject returns an anonymous actor, falling back to "0".
func AnonymousSubject(anonymousID string) Subject {
	if anonymousID == "" {
		anonymousID = AnonymousFallbackID
	}
	return Subject{AnonymousID: anonymousID}
}

// Identified reports whether the subject carries a verified identity.
func (s Subject) Identified() bool {
	return s.Email != "" || s.UserID != ""
}

// Key is the value adapters and the dispatcher use to group a subject's
// writes: email, then userId, then the anonymous id.
func (s Subject) Key() string {
	switch {
	case s.Email != "":
		return s.Email
	case s.UserID != "":
		return s.UserID
	case s.AnonymousID != "":
		return s.AnonymousID
	default:
		return AnonymousFallbackID
	}
}

// WithAnonymousID links anonymous activity to an identified subject. An empty
// id leaves the subject unchanged.
func (s Subject) WithAnonymousID(anonymousID string) Subject {
	if anonymousID != "" {
		s.AnonymousID = anonymousID
	}
	return s
}
