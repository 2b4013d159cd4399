package sale

import "github.com/google/uuid"

// IDGenerator produces sale idempotency ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 sale ids.
//
// The id is minted once per checkout and never derived from cart contents,
// so two identical carts rung up back to back are two distinct sales.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in hyphenated form.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
