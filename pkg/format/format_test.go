package format_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/buildtracker/pkg/format"
)

func TestBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int64
		want string
	}{
		{"zero", 0, "0 B"},
		{"small", 100, "100 B"},
		{"kibibyte", 1024, "1.0 KiB"},
		{"negative", -2048, "-2.0 KiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, format.Bytes(tt.in))
		})
	}
}

func TestSignedBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+100 B", format.SignedBytes(100))
	assert.Equal(t, "-100 B", format.SignedBytes(-100))
	assert.Equal(t, "0 B", format.SignedBytes(0))
}

func TestByteCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-1,234 bytes", format.ByteCount(-1234))
	assert.Equal(t, "0 bytes", format.ByteCount(0))
}

func TestPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.500%", format.Percent(0.125))
	assert.Equal(t, "-100.000%", format.Percent(-1))
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Date(2019, 2, 12, 19, 33, 20, 0, time.UTC)
	assert.Equal(t, "2019-02-12 19:33", format.Timestamp(ts))
}
