package routing

import (
	"regexp"
	"strings"

	"github.com/soyeahso/annabot/internal/domain"
)

// trigger decides which messages get a reply and what text the model sees.
type trigger struct {
	prefix   string
	strip    *regexp.Regexp
	keywords []string
}

func newTrigger(prefix string, keywords []string) *trigger {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &trigger{
		prefix:   strings.ToLower(prefix),
		strip:    regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefix) + `\s*`),
		keywords: lowered,
	}
}

// accept reports whether msg is something the bot should look at at all.
// It returns the extracted text.
func (t *trigger) accept(msg domain.InboundMessage) (string, bool) {
	if msg.FromMe || msg.IsBroadcast() {
		return "", false
	}
	text := msg.Content.Text()
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// prompt returns the text to answer and whether text triggers a reply.
// Direct chats always trigger; groups need the prefix, which is removed.
func (t *trigger) prompt(chatType domain.ChatType, text string) (string, bool) {
	if chatType != domain.ChatTypeGroup {
		return text, true
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(trimmed), t.prefix) {
		return "", false
	}
	return t.strip.ReplaceAllString(trimmed, ""), true
}

// memoryWorthy reports whether text mentions any keyword, ignoring case.
func (t *trigger) memoryWorthy(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range t.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
