package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden-bot/model"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{"2d6h", 194400 * time.Second},
		{"1h30m15s", time.Hour + 30*time.Minute + 15*time.Second},
		{"3650d", 3650 * 24 * time.Hour}, // the ten-year cap itself is fine
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationInvalid(t *testing.T) {
	inputs := []string{
		"",
		"1dd",
		"d",
		"12",
		"1w",
		"0h",
		"1h1h",
		"-5m",
		"1h 30m",
		"3651d",                 // just over the ten-year cap
		"99999999999999999999d", // would wrap int64 digit accumulation
		"9223372036854775807s",  // would overflow the Duration conversion
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			assert.ErrorIs(t, err, model.ErrInvalidFormat)
		})
	}
}
