package domain

// IdentityClaims are the identity attributes embedded in a signed token.
// Email is the primary correlation key; Random is the nonce added at mint
// time so two tokens for the same profile never collide.
type IdentityClaims struct {
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	UserID      string `json:"userId,omitempty"`
	AnonymousID string `json:"anonymousId,omitempty"`
	Data        Value  `json:"data,omitzero"`
	Random      int64  `json:"random,omitempty"`
}

// Equal compares claims field by field, payload included.
func (c IdentityClaims) Equal(o IdentityClaims) bool {
	return c.Email == o.Email &&
		c.Name == o.Name &&
		c.Image == o.Image &&
		c.UserID == o.UserID &&
		c.AnonymousID == o.AnonymousID &&
		c.Random == o.Random &&
		c.Data.Equal(o.Data)
}

// Subject converts verified claims into the actor of a tracked event.
func (c IdentityClaims) Subject() Subject {
	return Subject{
		Email:       c.Email,
		Name:        c.Name,
		Image:       c.Image,
		UserID:      c.UserID,
		AnonymousID: c.AnonymousID,
		Data:        c.Data,
	}
}
