package variables

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loomhq/loom/types"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)
}

func newTestResolver() *Resolver {
	r := NewResolver(NewBuiltinProvider(0, nil), nil)
	r.now = fixedClock
	return r
}

func TestResolver_AgentPlaceholders(t *testing.T) {
	r := newTestResolver()
	sc := Scope{
		Inputs:  map[int]string{1: "in-one", 2: "in-two"},
		Outputs: map[int]string{1: "out-one"},
	}

	assert.Equal(t, "got in-one and out-one", r.Resolve("got {agent1Input} and {agent1Output}", sc))
	assert.Equal(t, "in-two", r.Resolve("{agent2Input}", sc))
}

func TestResolver_UnresolvedStaysLiteral(t *testing.T) {
	r := newTestResolver()
	sc := Scope{Outputs: map[int]string{1: "one"}}

	assert.Equal(t, "{agent2Output}", r.Resolve("{agent2Output}", sc))
	assert.Equal(t, "{agent1Input}", r.Resolve("{agent1Input}", sc))
	assert.Equal(t, "{no_such_variable}", r.Resolve("{no_such_variable}", sc))
	assert.Equal(t, "plain text", r.Resolve("plain text", sc))
}

func TestResolver_Precedence(t *testing.T) {
	r := newTestResolver()
	sc := Scope{
		Custom:  map[string]string{"todays_date": "overridden", "greeting": "hi"},
		Inputs:  map[int]string{1: "input"},
		Outputs: map[int]string{1: "output"},
	}

	// Custom variables shadow builtins of the same name.
	assert.Equal(t, "overridden", r.Resolve("{todays_date}", sc))
	assert.Equal(t, "hi", r.Resolve("{greeting}", sc))
}

func TestResolver_TemplatedCustomVariables(t *testing.T) {
	r := newTestResolver()
	sc := Scope{
		Custom: map[string]string{
			"framed": "<<{agent1Input}>>",
			"loop":   "{loop}",
		},
		Inputs: map[int]string{1: "core"},
	}

	assert.Equal(t, "<<core>>", r.Resolve("{framed}", sc))
	// Custom variables cannot expand other custom variables, so a
	// self-reference stays literal instead of recursing.
	assert.Equal(t, "{loop}", r.Resolve("{loop}", sc))
}

func TestResolver_Builtins(t *testing.T) {
	r := newTestResolver()
	history := []types.Message{
		types.NewUserMessage("hello"),
		types.NewAssistantMessage("hi there"),
		types.NewUserMessage("how are you?"),
	}
	sc := Scope{History: history}

	assert.Equal(t, "2026-03-14", r.Resolve("{todays_date}", sc))
	assert.Equal(t, "Saturday, March 14, 2026", r.Resolve("{todays_date_pretty}", sc))
	assert.Equal(t, "3:09 PM", r.Resolve("{current_time_12h}", sc))
	assert.Equal(t, "15:09", r.Resolve("{current_time_24h}", sc))
	assert.Equal(t, "how are you?", r.Resolve("{last_user_message}", sc))
	assert.Equal(t, "hi there", r.Resolve("{last_assistant_message}", sc))
	assert.Equal(t, "assistant: hi there\nuser: how are you?", r.Resolve("{chat_last_2}", sc))
}

func TestBuiltinProvider_ChatLastClampsToHistory(t *testing.T) {
	p := NewBuiltinProvider(0, nil)
	history := []types.Message{types.NewUserMessage("only one")}

	v, ok := p.Lookup("chat_last_5", history, fixedClock())
	assert.True(t, ok)
	assert.Equal(t, "user: only one", v)

	_, ok = p.Lookup("chat_last_0", history, fixedClock())
	assert.False(t, ok)
}

func TestBuiltinProvider_RecentHistoryBudget(t *testing.T) {
	p := NewBuiltinProvider(10, nil)
	history := []types.Message{
		types.NewUserMessage("this is a fairly long opening message with many words in it"),
		types.NewAssistantMessage("short"),
		types.NewUserMessage("tail"),
	}

	v, ok := p.Lookup("recent_history", history, fixedClock())
	assert.True(t, ok)
	// The newest turns always survive truncation, and the view is a suffix of
	// the full render.
	full := "user: this is a fairly long opening message with many words in it\nassistant: short\nuser: tail"
	assert.Contains(t, v, "user: tail")
	assert.True(t, len(v) <= len(full))
	assert.True(t, full[len(full)-len(v):] == v, "view must be a suffix of the full history render")
}
