package llm

import (
	"strings"

	"browserPilot/internal/conversation"
)

// Transcript раскладывает записи контекста на системную инструкцию и ленту сообщений.
// Задача и наблюдения уходят от имени пользователя; подряд идущие сообщения одной
// роли склеиваются, потому что часть API требует чередования ролей.
func Transcript(entries []conversation.Entry) (string, []Message) {
	var system []string
	var msgs []Message

	for _, e := range entries {
		if e.Content == "" {
			continue
		}
		if e.Role == conversation.RoleSystem {
			system = append(system, e.Content)
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == RoleUser {
			msgs[n-1].Content += "\n\n" + e.Content
			continue
		}
		msgs = append(msgs, Message{Role: RoleUser, Content: e.Content})
	}

	return strings.Join(system, "\n\n"), msgs
}

func estimateTokens(system string, msgs []Message) int {
	n := len(system) / 4
	for _, m := range msgs {
		n += len(m.Content) / 4
	}
	return n
}

func flatten(system string, msgs []Message) string {
	var sb strings.Builder
	if system != "" {
		sb.WriteString("[system]\n")
		sb.WriteString(system)
	}
	for _, m := range msgs {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[" + string(m.Role) + "]\n")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
