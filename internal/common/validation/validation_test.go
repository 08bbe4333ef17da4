package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateComment(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		valid bool
	}{
		{"genuine comment", "This giveaway looks great, count me in!", true},
		{"short", "nice", false},
		{"whitespace padded short", "   hey    ", false},
		{"empty", "", false},
		{"single repeated character", strings.Repeat("a", 20), false},
		{"keyboard mash dominated", "aaaaaaaaaaaab", false},
		{"low entropy pattern", "ababababababab", false},
		{"punctuation only", "!!!???...---!!!", false},
		{"mixed sentence with emoji", "Love this prize 🎁 good luck everyone", true},
		{"too long", strings.Repeat("a sensible sentence here. ", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateComment(tt.text)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestCommentGateAdapter(t *testing.T) {
	valid, reason := CommentGate{}.ValidateComment("short")
	assert.False(t, valid)
	assert.NotEmpty(t, reason)

	valid, _ = CommentGate{}.ValidateComment("A perfectly ordinary comment about the contest.")
	assert.True(t, valid)
}

func TestValidatePositiveInt(t *testing.T) {
	assert.NoError(t, ValidatePositiveInt(1, "qty"))
	assert.Error(t, ValidatePositiveInt(0, "qty"))
	assert.Error(t, ValidatePositiveInt(-5, "qty"))
}

func TestValidateNonNegativeInt(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeInt(0, "total"))
	assert.Error(t, ValidateNonNegativeInt(-1, "total"))
}
