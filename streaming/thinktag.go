// Package streaming implements the post-processing pipeline applied to
// responder output before it leaves the engine: reasoning-markup removal and
// configured prefix stripping, in both streamed and full-text form.
//
// Filters are small per-request state machines. They are never shared between
// requests, so concurrent executions cannot interfere.
package streaming

import "strings"

// ThinkMode selects how reasoning markup is removed from model output.
type ThinkMode int

const (
	// ThinkModeOff passes text through unchanged.
	ThinkModeOff ThinkMode = iota
	// ThinkModeStandard looks for an opening tag within the grace period and
	// removes everything up to the matching closing tag.
	ThinkModeStandard
	// ThinkModeClosingOnly discards everything until the closing tag is seen;
	// used for backends that omit the opening tag from the stream.
	ThinkModeClosingOnly
)

// ThinkConfig configures a ThinkFilter.
type ThinkConfig struct {
	Mode ThinkMode `yaml:"mode" json:"mode"`

	// OpenTag and CloseTag delimit the removed span.
	OpenTag  string `yaml:"open_tag" json:"open_tag"`
	CloseTag string `yaml:"close_tag" json:"close_tag"`

	// GracePeriod is the character budget within which the opening tag must
	// appear; once exceeded the filter gives up and passes text through.
	GracePeriod int `yaml:"grace_period" json:"grace_period"`
}

// DefaultThinkConfig returns the standard-mode defaults.
func DefaultThinkConfig() ThinkConfig {
	return ThinkConfig{
		Mode:        ThinkModeStandard,
		OpenTag:     "<think>",
		CloseTag:    "</think>",
		GracePeriod: 64,
	}
}

type thinkState int

const (
	thinkSearching thinkState = iota
	thinkThinking
	thinkBuffering
	thinkPassthrough
)

// ThinkFilter removes one reasoning span from a token stream. Feed returns
// whatever text is safe to emit so far; Flush drains the buffer at stream end.
type ThinkFilter struct {
	cfg   ThinkConfig
	state thinkState
	buf   strings.Builder
}

// NewThinkFilter creates a filter in the initial state for its mode.
func NewThinkFilter(cfg ThinkConfig) *ThinkFilter {
	if cfg.OpenTag == "" {
		cfg.OpenTag = "<think>"
	}
	if cfg.CloseTag == "" {
		cfg.CloseTag = "</think>"
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 64
	}
	f := &ThinkFilter{cfg: cfg}
	switch cfg.Mode {
	case ThinkModeStandard:
		f.state = thinkSearching
	case ThinkModeClosingOnly:
		f.state = thinkBuffering
	default:
		f.state = thinkPassthrough
	}
	return f
}

// Feed consumes one chunk and returns the text to emit now.
func (f *ThinkFilter) Feed(chunk string) string {
	switch f.state {
	case thinkPassthrough:
		return chunk
	case thinkSearching:
		return f.feedSearching(chunk)
	case thinkThinking:
		return f.feedThinking(chunk)
	case thinkBuffering:
		return f.feedBuffering(chunk)
	}
	return chunk
}

func (f *ThinkFilter) feedSearching(chunk string) string {
	f.buf.WriteString(chunk)
	buffered := f.buf.String()

	if idx := strings.Index(buffered, f.cfg.OpenTag); idx >= 0 && idx <= f.cfg.GracePeriod {
		prefix := buffered[:idx]
		f.buf.Reset()
		f.state = thinkThinking
		// The remainder after the opening tag may already contain the close.
		return prefix + f.feedThinking(buffered[idx+len(f.cfg.OpenTag):])
	}

	// Give up once the opening tag can no longer appear inside the grace
	// period, accounting for a tag straddling the chunk boundary.
	if len(buffered) > f.cfg.GracePeriod+len(f.cfg.OpenTag) {
		f.buf.Reset()
		f.state = thinkPassthrough
		return buffered
	}
	return ""
}

func (f *ThinkFilter) feedThinking(chunk string) string {
	f.buf.WriteString(chunk)
	buffered := f.buf.String()

	if idx := strings.Index(buffered, f.cfg.CloseTag); idx >= 0 {
		after := buffered[idx+len(f.cfg.CloseTag):]
		f.buf.Reset()
		f.state = thinkPassthrough
		return after
	}
	return ""
}

func (f *ThinkFilter) feedBuffering(chunk string) string {
	f.buf.WriteString(chunk)
	buffered := f.buf.String()

	if idx := strings.Index(buffered, f.cfg.CloseTag); idx >= 0 {
		after := buffered[idx+len(f.cfg.CloseTag):]
		f.buf.Reset()
		f.state = thinkPassthrough
		return after
	}
	return ""
}

// Flush returns whatever the filter still holds at stream end. An
// unterminated think block is emitted verbatim, opening tag included, rather
// than silently dropped. In closing-only mode a missing closing tag yields
// nothing.
func (f *ThinkFilter) Flush() string {
	defer f.buf.Reset()
	switch f.state {
	case thinkSearching:
		f.state = thinkPassthrough
		return f.buf.String()
	case thinkThinking:
		f.state = thinkPassthrough
		return f.cfg.OpenTag + f.buf.String()
	case thinkBuffering:
		f.state = thinkPassthrough
		return ""
	}
	return ""
}
