// Package idgen generates the identifiers overlayd hands out: session ids
// and request ids.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns a Generator of random base-36 ids of n characters.
// Bytes at or above 252 are redrawn so every character is equally likely.
func NanoID(n int) Generator {
	return func() string {
		out := make([]byte, 0, n)
		buf := make([]byte, n)
		for len(out) < n {
			if _, err := rand.Read(buf); err != nil {
				panic("idgen: crypto/rand: " + err.Error())
			}
			for _, b := range buf {
				if b >= 252 || len(out) == n {
					continue
				}
				out = append(out, base36[b%36])
			}
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator of time-ordered RFC 9562 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen ("ses_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator behind New.
var Default Generator = UUIDv7()

// New returns an id from Default.
func New() string {
	return Default()
}
