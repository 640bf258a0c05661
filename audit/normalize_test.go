package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path?q=1  ", "https://example.com/path?q=1"},
		{"http://x.com", "http://x.com"},
		{"https://secure.org/path", "https://secure.org/path"},
		{"HTTP://Upper.com", "HTTP://Upper.com"},
		{"localhost:8080", "https://localhost:8080"},
		{"bücher.de", "https://xn--bcher-kva.de"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"example.com", "http://x.com", "https://a.b/c"} {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "https://", "http://", "exa mple.com", "https://[::1"} {
		t.Run(in, func(t *testing.T) {
			_, err := Normalize(in)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}
