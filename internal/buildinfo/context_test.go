package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ctx         *Context
		wantVersion string
		wantDate    string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", NewContext("", ""), UnknownValue, UnknownValue},
		{"set values", NewContext("v1.2.0", "2026-03-14T10:00:00Z"), "v1.2.0", "2026-03-14T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantVersion, tt.ctx.GetVersion())
			assert.Equal(t, tt.wantDate, tt.ctx.GetBuildDate())
			assert.Equal(t, "quack-go@"+tt.wantVersion, tt.ctx.Release())
		})
	}
}

func TestContext_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "quack-go v1.2.0 (built 2026-03-14)", NewContext("v1.2.0", "2026-03-14").String())
}
