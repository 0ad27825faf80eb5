package variables

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/loomhq/loom/types"
)

var chatLastRe = regexp.MustCompile(`^chat_last_(\d+)$`)

// BuiltinProvider resolves the fixed builtin variable names: dates, times,
// last-message views, chat_last_<n> turn windows, and a token-budgeted
// recent_history view.
type BuiltinProvider struct {
	tokenBudget int
	encoding    string
	logger      *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewBuiltinProvider creates a provider. tokenBudget bounds recent_history;
// zero or negative selects the default of 2048 tokens.
func NewBuiltinProvider(tokenBudget int, logger *zap.Logger) *BuiltinProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenBudget <= 0 {
		tokenBudget = 2048
	}
	return &BuiltinProvider{
		tokenBudget: tokenBudget,
		encoding:    "cl100k_base",
		logger:      logger.With(zap.String("component", "builtins")),
	}
}

// Lookup resolves a builtin variable name against the history and clock.
func (p *BuiltinProvider) Lookup(name string, history []types.Message, now time.Time) (string, bool) {
	switch name {
	case "todays_date":
		return now.Format("2006-01-02"), true
	case "todays_date_pretty":
		return now.Format("Monday, January 2, 2006"), true
	case "current_time_12h":
		return now.Format("3:04 PM"), true
	case "current_time_24h":
		return now.Format("15:04"), true
	case "current_date_time":
		return now.Format("2006-01-02 15:04:05"), true
	case "last_user_message":
		return types.LastOfRole(history, types.RoleUser), true
	case "last_assistant_message":
		return types.LastOfRole(history, types.RoleAssistant), true
	case "recent_history":
		return p.recentHistory(history), true
	}
	if m := chatLastRe.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", false
		}
		if n > len(history) {
			n = len(history)
		}
		return renderMessages(history[len(history)-n:]), true
	}
	return "", false
}

// recentHistory renders the newest turns that fit the token budget, oldest
// first. Turns are taken whole; the first turn that would overflow the budget
// ends the walk.
func (p *BuiltinProvider) recentHistory(history []types.Message) string {
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := p.countTokens(renderMessage(history[i]))
		if used+cost > p.tokenBudget {
			break
		}
		used += cost
		start = i
	}
	return renderMessages(history[start:])
}

func (p *BuiltinProvider) countTokens(text string) int {
	p.once.Do(func() {
		enc, err := tiktoken.GetEncoding(p.encoding)
		if err != nil {
			p.initErr = err
			return
		}
		p.enc = enc
	})
	if p.initErr != nil {
		// Character estimate keeps the view usable when the encoding data is
		// unavailable (offline hosts).
		p.logger.Warn("tiktoken unavailable, falling back to estimate", zap.Error(p.initErr))
		return len(text) / 4
	}
	return len(p.enc.Encode(text, nil, nil))
}

func renderMessage(m types.Message) string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

func renderMessages(messages []types.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, renderMessage(m))
	}
	return strings.Join(lines, "\n")
}
