// Package gameid generates the short identifiers games are addressed
// by: 16 characters of Crockford base32 over a millisecond timestamp
// and a random tail, so ids sort roughly by creation time and are easy
// to read aloud or paste into a client.
package gameid

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"
)

// Crockford's alphabet, lowercased. No i, l, o or u.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const (
	rawLen = 10 // 6 timestamp bytes + 4 random bytes
	idLen  = 16 // rawLen * 8 / 5
)

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generator produces game ids. The zero value is not usable; call
// NewGenerator.
type Generator struct {
	now     func() time.Time
	entropy io.Reader
}

// NewGenerator returns a production generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, entropy: rand.Reader}
}

// NewGeneratorWith injects the clock and entropy source, for tests.
func NewGeneratorWith(now func() time.Time, entropy io.Reader) *Generator {
	return &Generator{now: now, entropy: entropy}
}

// Generate returns a new id using the default generator.
func Generate() string {
	return NewGenerator().Generate()
}

func (g *Generator) Generate() string {
	var raw [rawLen]byte

	ms := g.now().UnixMilli()
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)

	if _, err := io.ReadFull(g.entropy, raw[6:]); err != nil {
		panic("gameid: entropy source failed: " + err.Error())
	}

	return encoding.EncodeToString(raw[:])
}

// Validate checks that id is a well-formed game id.
func Validate(id string) error {
	if len(id) != idLen {
		return fmt.Errorf("game id must be %d characters, got %d", idLen, len(id))
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %q at position %d", c, i)
		}
	}
	return nil
}
