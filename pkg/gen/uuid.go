package gen

import (
	"github.com/google/uuid"
)

// UUIDGenerator yields identifiers for recordings. A nil generator yields uuid.Nil.
type UUIDGenerator func() uuid.UUID

func UUID() UUIDGenerator {
	return func() uuid.UUID {
		return uuid.Must(uuid.NewRandom())
	}
}

// Fixed always returns id. Handy where file names must be predictable.
func Fixed(id uuid.UUID) UUIDGenerator {
	return func() uuid.UUID {
		return id
	}
}

func (g UUIDGenerator) Next() uuid.UUID {
	if g == nil {
		return uuid.Nil
	}

	return g()
}
