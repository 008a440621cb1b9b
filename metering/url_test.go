package metering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureMeterInURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", DefaultBaseURL},
		{"whitespace", "   ", DefaultBaseURL},
		{"no host", "not-a-url", DefaultBaseURL},
		{"already normalized", "https://api.revenium.ai/meter", "https://api.revenium.ai/meter"},
		{"trailing slash", "https://api.revenium.ai/meter/", "https://api.revenium.ai/meter"},
		{"many trailing slashes", "https://api.revenium.ai/meter///", "https://api.revenium.ai/meter"},
		{"bare host", "https://api.revenium.ai", "https://api.revenium.ai/meter"},
		{"version suffix", "https://api.revenium.ai/meter/v1", "https://api.revenium.ai/meter"},
		{"version suffix v2", "https://api.revenium.ai/meter/v2/", "https://api.revenium.ai/meter"},
		{"version without meter", "https://api.revenium.ai/v3", "https://api.revenium.ai/meter"},
		{"other path replaced", "https://api.revenium.ai/api/metering", "https://api.revenium.ai/meter"},
		{"staging host", "http://localhost:8080", "http://localhost:8080/meter"},
		{"staging host with meter", "http://localhost:8080/meter", "http://localhost:8080/meter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureMeterInURL(tt.in))
		})
	}
}

func TestEnsureMeterInURLIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"https://api.revenium.ai",
		"https://api.revenium.ai/meter/v1",
		"http://localhost:8080/anything",
	}
	for _, in := range inputs {
		once := EnsureMeterInURL(in)
		assert.Equal(t, once, EnsureMeterInURL(once), "input %q", in)
	}
}
