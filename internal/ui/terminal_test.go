package ui

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldUseColor_NoColorWins(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	assert.False(t, ShouldUseColor())
}

func TestShouldUseColor_CliColorZero(t *testing.T) {
	t.Setenv("CLICOLOR", "0")
	t.Setenv("CLICOLOR_FORCE", "1")
	assert.False(t, ShouldUseColor())
}

func TestShouldUseColor_Force(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	t.Setenv("CLICOLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	assert.True(t, ShouldUseColor())
}

func TestShouldUseEmoji_Disabled(t *testing.T) {
	t.Setenv("REAP_NO_EMOJI", "1")
	assert.False(t, ShouldUseEmoji())
}
