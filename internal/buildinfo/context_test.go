package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2026-01-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2026-01-01"), want: "1.0.0"},
		{name: "pre-release tag", ctx: NewContext("1.0.0-beta.1", ""), want: "1.0.0-beta.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.0 (built 2026-10-01)", NewContext("1.2.0", "2026-10-01").String())
	assert.Equal(t, "unknown (built unknown)", NewContext("", "").String())
	assert.Equal(t, UnknownValue, Current().GetBuildDate())
}
