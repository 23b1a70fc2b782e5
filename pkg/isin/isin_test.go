package isin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"IE00B4L5Y983", true},  // iShares Core MSCI World
		{"LU0323577923", true},  // Flossbach von Storch Multiple Opportunities
		{"US0378331005", true},  // Apple
		{"DE0008490962", true},  // DWS Top Dividende
		{"IE00B4L5Y984", false}, // check digit off by one
		{"XX00B4L5Y983", false}, // wrong checksum for altered prefix
		{"IE00B4L5Y98", false},  // too short
		{"IE00B4L5Y9831", false},
		{"", false},
		{"ie00b4l5y983", false}, // lowercase is not an ISIN
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.code), "code %q", tt.code)
	}
}

func TestExtractFromMessyText(t *testing.T) {
	text := `My policy offers these funds:
	1) Global Equity (IE00B4L5Y983) - current pick
	2) Flossbach Multiple Opp LU0323577923, and some bond thing
	3) DWS Top Dividende / DE0008490962
	Also mentions IE00B4L5Y983 twice and a broken code IE00B4L5Y984.`

	valid, rejected := Extract(text)

	assert.Equal(t, []string{"IE00B4L5Y983", "LU0323577923", "DE0008490962"}, valid)
	assert.Equal(t, []string{"IE00B4L5Y984"}, rejected)
}

func TestExtractNoCandidates(t *testing.T) {
	valid, rejected := Extract("I have no idea which funds are in my contract.")

	assert.Empty(t, valid)
	assert.Empty(t, rejected)
}

func TestExtractIgnoresEmbeddedLookalikes(t *testing.T) {
	// No word boundary around the candidate, part of a longer token.
	valid, rejected := Extract("ref=XIE00B4L5Y983Z")

	assert.Empty(t, valid)
	assert.Empty(t, rejected)
}
