package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func runFilter(f *ThinkFilter, chunks ...string) string {
	var out string
	for _, c := range chunks {
		out += f.Feed(c)
	}
	return out + f.Flush()
}

func TestThinkFilter_StandardRemovesSpan(t *testing.T) {
	cfg := DefaultThinkConfig()
	cfg.GracePeriod = 7

	f := NewThinkFilter(cfg)
	assert.Equal(t, "visible", runFilter(f, "<think>hidden</think>visible"))
}

func TestThinkFilter_StandardNoTags(t *testing.T) {
	f := NewThinkFilter(DefaultThinkConfig())
	assert.Equal(t, "no tags here", runFilter(f, "no tags here"))
}

func TestThinkFilter_StandardUnterminatedIsFlushed(t *testing.T) {
	f := NewThinkFilter(DefaultThinkConfig())
	assert.Equal(t, "<think>never closes", runFilter(f, "<think>never closes"))
}

func TestThinkFilter_StandardChunkedAcrossTag(t *testing.T) {
	f := NewThinkFilter(DefaultThinkConfig())
	out := runFilter(f, "<thi", "nk>hid", "den</th", "ink>vis", "ible")
	assert.Equal(t, "visible", out)
}

func TestThinkFilter_StandardTextBeforeTagWithinGrace(t *testing.T) {
	f := NewThinkFilter(DefaultThinkConfig())
	assert.Equal(t, "  after", runFilter(f, "  <think>reasoning</think>after"))
}

func TestThinkFilter_GracePeriodExpiry(t *testing.T) {
	cfg := DefaultThinkConfig()
	cfg.GracePeriod = 4

	// The opening tag appears past the grace budget, so everything passes
	// through unchanged, tag included.
	f := NewThinkFilter(cfg)
	input := "hello there <think>late</think>"
	assert.Equal(t, input, runFilter(f, input))
}

func TestThinkFilter_GraceBuffersPartialTag(t *testing.T) {
	cfg := DefaultThinkConfig()
	cfg.GracePeriod = 4

	// A partial opening tag at the boundary must not be flushed prematurely.
	f := NewThinkFilter(cfg)
	assert.Equal(t, "out", runFilter(f, "<th", "ink>in</think>out"))
}

func TestThinkFilter_ClosingOnlyMode(t *testing.T) {
	cfg := DefaultThinkConfig()
	cfg.Mode = ThinkModeClosingOnly

	f := NewThinkFilter(cfg)
	assert.Equal(t, "answer", runFilter(f, "reasoning text", "</think>", "answer"))
}

func TestThinkFilter_ClosingOnlyNeverCloses(t *testing.T) {
	cfg := DefaultThinkConfig()
	cfg.Mode = ThinkModeClosingOnly

	// Without the closing marker the whole run is discarded.
	f := NewThinkFilter(cfg)
	assert.Equal(t, "", runFilter(f, "reasoning ", "that never ends"))
}

func TestThinkFilter_OffMode(t *testing.T) {
	f := NewThinkFilter(ThinkConfig{Mode: ThinkModeOff})
	assert.Equal(t, "<think>kept</think>", runFilter(f, "<think>kept</think>"))
}
