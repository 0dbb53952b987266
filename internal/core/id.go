package core

import "github.com/oklog/ulid/v2"

// IDGenerator produces identifiers for new entries and templates.
type IDGenerator interface {
	NewID() string
}

// ULIDGenerator generates lexicographically sortable ULIDs.
type ULIDGenerator struct{}

func (ULIDGenerator) NewID() string {
	return ulid.Make().String()
}
