package prompt

import "strings"

// openingMessage stands in for the user turn when there is no history yet.
const openingMessage = "hi"

// Render encodes the system prompt and the alternating user/assistant
// messages (user first) into the grammar of f. Output is deterministic and
// never empty.
func Render(f Format, systemPrompt string, messages []string) string {
	if len(messages) == 0 {
		messages = []string{openingMessage}
	}
	var b strings.Builder
	switch f {
	case Llama2:
		renderLlama2(&b, systemPrompt, messages)
	case ChatML:
		renderChatML(&b, systemPrompt, messages)
	case Alpaca:
		renderAlpaca(&b, systemPrompt, messages)
	case Continuation:
		renderContinuation(&b, systemPrompt, messages)
	default:
		renderVicuna(&b, systemPrompt, messages)
	}
	return b.String()
}

func isUser(i int) bool { return i%2 == 0 }

func renderLlama2(b *strings.Builder, sys string, messages []string) {
	b.WriteString("<s>[INST] <<SYS>>\n")
	b.WriteString(sys)
	b.WriteString("\n<</SYS>>\n\n")
	for i, m := range messages {
		switch {
		case i == 0:
			b.WriteString(m)
			b.WriteString(" [/INST]")
		case isUser(i):
			b.WriteString("<s>[INST] ")
			b.WriteString(m)
			b.WriteString(" [/INST]")
		default:
			b.WriteString(" ")
			b.WriteString(m)
			b.WriteString(" </s>")
		}
	}
}

func renderChatML(b *strings.Builder, sys string, messages []string) {
	b.WriteString("<|im_start|>system\n")
	b.WriteString(sys)
	b.WriteString("<|im_end|>\n")
	for i, m := range messages {
		role := "assistant"
		if isUser(i) {
			role = "user"
		}
		b.WriteString("<|im_start|>")
		b.WriteString(role)
		b.WriteString("\n")
		b.WriteString(m)
		b.WriteString("<|im_end|>\n")
	}
	if isUser(len(messages) - 1) {
		b.WriteString("<|im_start|>assistant\n")
	}
}

func renderVicuna(b *strings.Builder, sys string, messages []string) {
	if sys != "" {
		b.WriteString(sys)
		b.WriteString("\n\n")
	}
	for i, m := range messages {
		if isUser(i) {
			b.WriteString("USER: ")
			b.WriteString(m)
			b.WriteString("\n")
			continue
		}
		b.WriteString("ASSISTANT: ")
		b.WriteString(m)
		b.WriteString("</s>\n")
	}
	if isUser(len(messages) - 1) {
		b.WriteString("ASSISTANT:")
	}
}

func renderAlpaca(b *strings.Builder, sys string, messages []string) {
	if sys != "" {
		b.WriteString(sys)
		b.WriteString("\n\n")
	}
	for i, m := range messages {
		if isUser(i) {
			b.WriteString("### Instruction:\n")
			b.WriteString(m)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString("### Response:\n")
		b.WriteString(m)
		b.WriteString("\n\n")
	}
	if isUser(len(messages) - 1) {
		b.WriteString("### Response:\n")
	}
}

func renderContinuation(b *strings.Builder, sys string, messages []string) {
	if sys != "" {
		b.WriteString(sys)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(messages, "\n"))
}

// Turn is one role-tagged message of a conversation.
type Turn struct {
	Role    string
	Content string
}

// Turns expands a plain alternating message list into role-tagged turns,
// applying the same synthetic opening Render uses for an empty history.
func Turns(messages []string) []Turn {
	if len(messages) == 0 {
		messages = []string{openingMessage}
	}
	out := make([]Turn, len(messages))
	for i, m := range messages {
		role := "assistant"
		if isUser(i) {
			role = "user"
		}
		out[i] = Turn{Role: role, Content: m}
	}
	return out
}
