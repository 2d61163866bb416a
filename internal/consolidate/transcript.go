package consolidate

import (
	"encoding/json"
	"strings"

	"github.com/memoryctl/memoryctl/internal/claude"
)

// flattenConversation renders a conversation file's user/assistant turns
// into "role: text" paragraphs, skipping garbage content the way
// original_source/src/session_consolidator.py's extract_conversation_text
// does. Handles both the legacy flat-message and the newer
// nested-"message" JSONL shapes via RawMessage.Message.
func flattenConversation(conv *claude.ConversationFile) string {
	var lines []string
	for _, raw := range conv.Messages {
		role, text, ok := parseTurn(raw)
		if !ok {
			continue
		}
		if role != "user" && role != "assistant" {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || isGarbageContent(text) {
			continue
		}
		lines = append(lines, role+": "+text)
	}
	return strings.Join(lines, "\n\n")
}

func parseTurn(raw claude.RawMessage) (role, text string, ok bool) {
	if len(raw.Message) == 0 {
		return "", "", false
	}

	var parsed claude.ParsedMessage
	if err := json.Unmarshal(raw.Message, &parsed); err == nil && parsed.Role != "" {
		return parsed.Role, claude.ExtractTextContent(parsed.Content), true
	}

	// Fall back to the top-level type/content shape some exports use.
	if raw.Type != "" {
		return raw.Type, claude.ExtractTextContent(raw.Message), true
	}
	return "", "", false
}
