// Package id mints the opaque run identifiers stamped on snapshot runs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// runIDBytes of entropy per id, hex-encoded to twice as many characters.
const runIDBytes = 16

// Generator mints run ids. Ids are opaque: callers only compare and log them.
type Generator interface {
	NewID() (string, error)
}

// RandomGenerator draws ids from crypto/rand.
type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, runIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("draw run id entropy: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
