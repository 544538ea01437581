package assign

import "github.com/google/uuid"

// TokenGenerator mints generation tokens. The default is UUIDv7 so
// tokens sort by creation time; tests pin a FixedGenerator.
type TokenGenerator interface {
	NewToken() string
}

// UUIDGenerator mints time-ordered UUIDv7 tokens.
type UUIDGenerator struct{}

func (UUIDGenerator) NewToken() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator always returns the same token.
type FixedGenerator struct {
	Token string
}

func (g FixedGenerator) NewToken() string { return g.Token }
