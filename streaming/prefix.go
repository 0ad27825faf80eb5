package streaming

import "strings"

// Default markers stripped from the front of responder output after any
// configured prefixes. Prompt templates that inject a timestamp or a role
// label lead some backends to echo them back at the start of the reply.
const (
	DefaultTimestampMarker = "[Timestamp]"
	DefaultRoleMarker      = "Assistant:"
)

// PrefixConfig lists the literal prefixes removed from responder output, in
// category order: workflow-level, endpoint-level, timestamp marker, role
// marker. At most one prefix per category is stripped.
type PrefixConfig struct {
	WorkflowPrefixes []string `yaml:"workflow_prefixes" json:"workflow_prefixes"`
	EndpointPrefixes []string `yaml:"endpoint_prefixes" json:"endpoint_prefixes"`
	TimestampMarker  string   `yaml:"timestamp_marker" json:"timestamp_marker"`
	RoleMarker       string   `yaml:"role_marker" json:"role_marker"`
}

// DefaultPrefixConfig returns a config with only the fixed markers set.
func DefaultPrefixConfig() PrefixConfig {
	return PrefixConfig{
		TimestampMarker: DefaultTimestampMarker,
		RoleMarker:      DefaultRoleMarker,
	}
}

// strip removes the first matching prefix from each category, in order.
func (c PrefixConfig) strip(text string) string {
	text = stripFirst(text, c.WorkflowPrefixes)
	text = stripFirst(text, c.EndpointPrefixes)
	if c.TimestampMarker != "" {
		text = strings.TrimPrefix(text, c.TimestampMarker)
	}
	if c.RoleMarker != "" {
		text = strings.TrimPrefix(text, c.RoleMarker)
	}
	return text
}

// maxLen returns how many characters are needed to test every category.
func (c PrefixConfig) maxLen() int {
	total := longest(c.WorkflowPrefixes) + longest(c.EndpointPrefixes)
	total += len(c.TimestampMarker) + len(c.RoleMarker)
	return total
}

func stripFirst(text string, prefixes []string) string {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			return text[len(p):]
		}
	}
	return text
}

func longest(prefixes []string) int {
	max := 0
	for _, p := range prefixes {
		if len(p) > max {
			max = len(p)
		}
	}
	return max
}

// PrefixStripper is the streaming form: it buffers until enough text has
// arrived to test every configured prefix, strips once, then disables itself
// and passes all later text through unmodified.
type PrefixStripper struct {
	cfg    PrefixConfig
	needed int
	active bool
	buf    strings.Builder
}

// NewPrefixStripper creates a one-shot streaming stripper.
func NewPrefixStripper(cfg PrefixConfig) *PrefixStripper {
	return &PrefixStripper{
		cfg:    cfg,
		needed: cfg.maxLen(),
		active: cfg.maxLen() > 0,
	}
}

// Feed consumes one chunk and returns the text to emit now.
func (s *PrefixStripper) Feed(chunk string) string {
	if !s.active {
		return chunk
	}
	s.buf.WriteString(chunk)
	if s.buf.Len() < s.needed {
		return ""
	}
	out := s.cfg.strip(s.buf.String())
	s.buf.Reset()
	s.active = false
	return out
}

// Flush drains the buffer at stream end, stripping if the stream ended before
// the decision length was reached.
func (s *PrefixStripper) Flush() string {
	if !s.active {
		return ""
	}
	out := s.cfg.strip(s.buf.String())
	s.buf.Reset()
	s.active = false
	return out
}

// StripPrefixes is the full-text twin used for non-streaming responders: the
// same ordered removals applied once, followed by a whitespace trim.
func StripPrefixes(text string, cfg PrefixConfig) string {
	return strings.TrimSpace(cfg.strip(text))
}
