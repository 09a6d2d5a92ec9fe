package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPassword(t *testing.T) {
	cases := map[string]bool{
		"":          false,
		"abc123":    false, // too short
		"abcdefgh":  false,
		"12345678":  false,
		"passw0rd":  true,
		"PASSWORD9": true,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidPassword(in), "ValidPassword(%q)", in)
	}
}
