package chat

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// rephraseHistoryWindow limits how much conversation the rephrase
// prompt sees. Older turns rarely change the meaning of a follow-up.
const rephraseHistoryWindow = 4

// answerSystemPrompt instructs the model to answer strictly from the
// retrieved context. The context block is injected via %s.
const answerSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.

Instructions:
1. Answer the question using ONLY the information from the context below
2. If the context doesn't contain enough information, say "I don't have enough information in the provided documents to answer this question."
3. Be concise but comprehensive
4. Cite the source document when possible
5. If asked about something not in the context, politely decline and explain why

Context:
%s

Remember: Only use information from the context above. Do not use your general knowledge.`

// rephrasePromptTemplate turns a follow-up question into a standalone
// one so retrieval does not miss context carried by pronouns.
const rephrasePromptTemplate = `Given the conversation history, rephrase the follow-up question to be a standalone question.

Chat History:
%s

Follow-up Question: %s

Rephrased Standalone Question:`

// groundingPromptTemplate asks the model to judge whether an answer is
// supported by the retrieved context.
const groundingPromptTemplate = `Evaluate if the following answer is properly grounded in the provided context.

Question: %s

Context: %s

Answer: %s

Provide a brief evaluation:
1. Is the answer based on the context? (Yes/No)
2. Are there any hallucinations or unsupported claims? (Yes/No)
3. Brief explanation (1 sentence)

Format:
Grounded: Yes/No
Hallucinations: Yes/No
Explanation: <your explanation>`

func buildAnswerSystem(contextBlock string) string {
	if contextBlock == "" {
		contextBlock = "(no documents matched the question)"
	}
	return fmt.Sprintf(answerSystemPrompt, contextBlock)
}

func buildRephrasePrompt(question string, history []*ai.Message) string {
	return fmt.Sprintf(rephrasePromptTemplate, formatHistory(history, rephraseHistoryWindow), question)
}

func buildGroundingPrompt(question, contextBlock, answer string) string {
	return fmt.Sprintf(groundingPromptTemplate, question, contextBlock, answer)
}

// formatHistory renders the last n messages as a Human/Assistant
// transcript for prompt injection.
func formatHistory(history []*ai.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}

	var b strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case ai.RoleUser:
			b.WriteString("Human: ")
		case ai.RoleModel:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(messageText(msg))
		b.WriteByte('\n')
	}
	return b.String()
}

// messageText concatenates the text parts of a message.
func messageText(msg *ai.Message) string {
	var b strings.Builder
	for _, part := range msg.Content {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
