package domain

import "time"

// UserProfile is the durable, upserted view of an identified subject, keyed
// by email.
type UserProfile struct {
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Image       string    `json:"image,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	AnonymousID string    `json:"anonymousId,omitempty"`
	Data        Value     `json:"data,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProfileOf projects a subject onto its stored profile.
func ProfileOf(s Subject, now time.Time) UserProfile {
	return UserProfile{
		Email:       s.Email,
		Name:        s.Name,
		Image:       s.Image,
		UserID:      s.UserID,
		AnonymousID: s.AnonymousID,
		Data:        s.Data,
		UpdatedAt:   now.UTC(),
	}
}
