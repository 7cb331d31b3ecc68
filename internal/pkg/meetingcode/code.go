package meetingcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet excludes 0/O/1/I so codes survive being read aloud or typed from a phone.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultLength gives a 32^6 code space; collisions against active sessions
// are still checked by the caller before a code is accepted.
const DefaultLength = 6

// Generate returns a random human-typeable meeting code of n characters.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = DefaultLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	b.Grow(n)
	for _, c := range buf {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

// Normalize uppercases user input and strips surrounding whitespace so lookups
// are exact-match against stored codes.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
