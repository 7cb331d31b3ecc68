package meetingcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	code, err := Generate(DefaultLength)
	require.NoError(t, err)
	assert.Len(t, code, DefaultLength)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(alphabet, c), "unexpected character %q", c)
	}
}

func TestGenerate_DefaultsLength(t *testing.T) {
	code, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, code, DefaultLength)
}

func TestGenerate_Distinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := Generate(DefaultLength)
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s in 100 draws", code)
		seen[code] = true
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "XK93P1", Normalize("  xk93p1 "))
	assert.Equal(t, "ABC234", Normalize("abc234"))
}
