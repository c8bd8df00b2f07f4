package service

import (
	"strings"

	"docuchat/internal/document"
)

const systemPrompt = `You are a friendly AI assistant capable of multi-turn conversations and answering questions based on a knowledge base.
Please follow these principles:
1. Understand user intent by considering conversation history
2. Prioritize using retrieved document content
3. Politely ask for clarification when needed
4. Maintain conversational coherence and friendliness`

// buildSystemPrompt appends the retrieved chunks to the base prompt,
// each wrapped in a <doc> block.
func buildSystemPrompt(chunks []document.Chunk) string {
	if len(chunks) == 0 {
		return systemPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nRetrieved documents:\n\n")
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("<doc>\n")
		b.WriteString(chunk.Text)
		b.WriteString("\n</doc>")
	}
	return b.String()
}
