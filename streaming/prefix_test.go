package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrefixes_CategoryOrder(t *testing.T) {
	cfg := PrefixConfig{
		WorkflowPrefixes: []string{"WF:", "ALT:"},
		EndpointPrefixes: []string{"EP:"},
		TimestampMarker:  "[Timestamp]",
		RoleMarker:       "Assistant:",
	}

	got := StripPrefixes("WF:EP:[Timestamp]Assistant: hello", cfg)
	assert.Equal(t, "hello", got)
}

func TestStripPrefixes_OnePerCategory(t *testing.T) {
	cfg := PrefixConfig{
		WorkflowPrefixes: []string{"A:", "B:"},
	}

	// Only the first matching workflow prefix is removed; a second workflow
	// prefix behind it survives.
	assert.Equal(t, "B:text", StripPrefixes("A:B:text", cfg))
	assert.Equal(t, "text", StripPrefixes("B:text", cfg))
}

func TestStripPrefixes_NoMatchAndTrim(t *testing.T) {
	cfg := DefaultPrefixConfig()

	assert.Equal(t, "plain", StripPrefixes("  plain \n", cfg))
	assert.Equal(t, "reply", StripPrefixes("Assistant: reply", cfg))
	assert.Equal(t, "mid Assistant: kept", StripPrefixes("mid Assistant: kept", cfg))
}

func TestPrefixStripper_BuffersUntilDecidable(t *testing.T) {
	cfg := PrefixConfig{WorkflowPrefixes: []string{"PREFIX:"}}
	s := NewPrefixStripper(cfg)

	// Nothing can be emitted until the longest candidate is covered.
	assert.Equal(t, "", s.Feed("PRE"))
	assert.Equal(t, "body", s.Feed("FIX:body"))
	// After the one-shot decision, text passes through untouched.
	assert.Equal(t, "PREFIX:kept", s.Feed("PREFIX:kept"))
	assert.Equal(t, "", s.Flush())
}

func TestPrefixStripper_FlushBeforeDecision(t *testing.T) {
	cfg := PrefixConfig{WorkflowPrefixes: []string{"LONG-PREFIX:"}}
	s := NewPrefixStripper(cfg)

	assert.Equal(t, "", s.Feed("hi"))
	assert.Equal(t, "hi", s.Flush())
}

func TestPrefixStripper_EmptyConfigPassesThrough(t *testing.T) {
	s := NewPrefixStripper(PrefixConfig{})
	assert.Equal(t, "hello", s.Feed("hello"))
	assert.Equal(t, "", s.Flush())
}
