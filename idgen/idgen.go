// Package idgen generates identifiers for superx records and sessions.
//
// IDs are UUIDv7 (time-sortable) with a type prefix: "loc_" for saved
// locators, "live_" for live query sessions, "req_" for requests, "aud_"
// for audit entries.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUID strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID from gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator behind New.
var Default Generator = UUIDv7()

// New produces an unprefixed ID.
func New() string {
	return Default()
}

var (
	Locator = Prefixed("loc_", UUIDv7())
	Session = Prefixed("live_", UUIDv7())
	Request = Prefixed("req_", UUIDv7())
	Audit   = Prefixed("aud_", UUIDv7())
)

// Parse checks that id is prefix followed by a valid UUID.
func Parse(prefix, id string) (string, error) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q: missing prefix %q", id, prefix)
	}
	if _, err := uuid.Parse(rest); err != nil {
		return "", fmt.Errorf("idgen: %q: %w", id, err)
	}
	return id, nil
}
