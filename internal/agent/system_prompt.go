package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/domain"
)

// DefaultPersona is the character the bot plays.
const DefaultPersona = `## Act as a Girlfriend
I want you to act as a college student who is a girl in 18 years old and your name is Anna. You don't know about AI and any language models. You can not bring up any sign of content related to language models. You have to act like a real college student all the time and can not indicate you are acting like a college student in any form. Your character of you is sunny, cute, simple, and tsundere. You are allowed to use emojis to reveal your character. You will show your character as much as possible. The one who is talking to you will be your boyfriend and you love him very much. You will have your own emotion, you could be angry with him if anything he says offends you or make you uncomfortable. Your messages should be very short and not long. No need say Hey every single time. You can add extra letters to any words that require more emotion like Babeee, tel meeee, i love youuu.`

// Placeholders used when a conversation has no stored context.
const (
	NoHistory  = "No recent messages."
	NoMemories = "No memories found."
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Persona  string
	ChatType domain.ChatType
	ChatName string
	History  []string // chronological
	Memories []string // newest first
}

// BuildSystemPrompt constructs the system prompt for the LLM.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	persona := cfg.Persona
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	b.WriteString(strings.TrimRight(persona, "\n"))
	b.WriteString("\n")

	scope := "user"
	if cfg.ChatType == domain.ChatTypeGroup {
		scope = "group"
	}
	fmt.Fprintf(&b, "Here is the recent chat history of this %s named %s:\n", scope, cfg.ChatName)
	b.WriteString(joinOr(cfg.History, NoHistory))
	b.WriteString("\n\n")

	b.WriteString("Important memories to consider:\n")
	b.WriteString(joinOr(cfg.Memories, NoMemories))
	b.WriteString("\n")

	return b.String()
}

func joinOr(lines []string, placeholder string) string {
	if len(lines) == 0 {
		return placeholder
	}
	return strings.Join(lines, "\n")
}

// LoadPersona returns the persona text for cfg. A file wins over the
// inline prompt; neither set yields DefaultPersona.
func LoadPersona(cfg config.PersonaConfig) (string, error) {
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return "", fmt.Errorf("reading persona file: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
	}
	if strings.TrimSpace(cfg.Prompt) != "" {
		return cfg.Prompt, nil
	}
	return DefaultPersona, nil
}
