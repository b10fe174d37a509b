package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Laptop", "laptop"},
		{"  LAPTOP  ", "laptop"},
		{"Dell-Laptop, 15\"", "dell laptop 15"},
		{"Café Équipement", "cafe equipement"},
		{"wireless   mouse", "wireless mouse"},
		{"USB-C Cable (2m)", "usb c cable 2m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizedOracle(t *testing.T) {
	same, err := Normalized{}.Same(context.Background(), "Dell Laptop", "dell-laptop")
	require.NoError(t, err)
	assert.True(t, same)

	same, err = Normalized{}.Same(context.Background(), "Dell Laptop", "HP Laptop")
	require.NoError(t, err)
	assert.False(t, same)
}

type stubOracle struct {
	same bool
	err  error
}

func (s stubOracle) Same(context.Context, string, string) (bool, error) {
	return s.same, s.err
}

func TestWithFallbackDelegatesToPrimary(t *testing.T) {
	oracle := WithFallback(stubOracle{same: true})
	same, err := oracle.Same(context.Background(), "anything", "completely different")
	require.NoError(t, err)
	assert.True(t, same, "primary verdict wins when it succeeds")
}

func TestWithFallbackDegradesOnFailure(t *testing.T) {
	oracle := WithFallback(stubOracle{err: errors.New("timeout")})

	same, err := oracle.Same(context.Background(), "Dell Laptop", "DELL LAPTOP")
	require.NoError(t, err, "fallback never surfaces the primary's error")
	assert.True(t, same)

	same, err = oracle.Same(context.Background(), "Dell Laptop", "HP Laptop")
	require.NoError(t, err)
	assert.False(t, same)
}

func TestWithFallbackNilPrimary(t *testing.T) {
	oracle := WithFallback(nil)
	same, err := oracle.Same(context.Background(), "a", "A")
	require.NoError(t, err)
	assert.True(t, same)
}
