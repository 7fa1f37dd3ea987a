package rag

import (
	"fmt"
	"strings"

	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// Policy selects how retrieved context is merged into the chat messages.
type Policy string

const (
	PolicySystemMessage   Policy = "SystemMessage"
	PolicyLastUserMessage Policy = "LastUserMessage"
)

const lastUserMessageTemplate = "%s\nAnswer the question based on the pieces of context above. The question is:\n%s"

// MergeContext rewrites messages in place to include context under the
// given policy, demoting SystemMessage to LastUserMessage when the chat
// model lacks system-prompt support (logged, per spec §4.7 step 6/§9).
// backendID is used only for the demotion log line.
func MergeContext(messages []models.Message, context string, hasSystemPrompt bool, policy Policy, ragPrompt string, backendID string) ([]models.Message, error) {
	if len(messages) == 0 {
		return nil, gwerr.New(gwerr.BadRequest, "no messages to merge RAG context into")
	}
	context = strings.TrimRight(context, "\n\r\t ")
	if context == "" {
		return messages, nil
	}

	effective := policy
	if policy == PolicySystemMessage && !hasSystemPrompt {
		log.Info().Str("backend_id", backendID).Msg("chat model has no system prompt support, demoting RAG policy SystemMessage to LastUserMessage")
		effective = PolicyLastUserMessage
	}

	switch effective {
	case PolicySystemMessage:
		return mergeSystemMessage(messages, context, ragPrompt), nil
	case PolicyLastUserMessage:
		return mergeLastUserMessage(messages, context)
	default:
		return mergeLastUserMessage(messages, context)
	}
}

func mergeSystemMessage(messages []models.Message, context, ragPrompt string) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)

	if out[0].Role == models.RoleSystem {
		existing, _ := out[0].Text()
		var content string
		if ragPrompt != "" {
			content = strings.TrimSpace(existing) + "\n" + ragPrompt + "\n" + context
		} else {
			content = strings.TrimSpace(existing) + "\n" + context
		}
		out[0] = out[0].WithText(content)
		return out
	}

	var content string
	if ragPrompt != "" {
		content = ragPrompt + "\n" + context
	} else {
		content = context
	}
	sysMsg := models.Message{Role: models.RoleSystem}.WithText(content)
	return append([]models.Message{sysMsg}, out...)
}

// mergeLastUserMessage requires the last message be a user message with text
// content (the original's BadMessages prompt-build failure); that failure
// surfaces as gwerr.Operation (500), matching how original_source's
// RagPromptBuilder::build error is wrapped through ServerError::Operation
// rather than treated as a client input error.
func mergeLastUserMessage(messages []models.Message, context string) ([]models.Message, error) {
	last := messages[len(messages)-1]
	if last.Role != models.RoleUser {
		return nil, gwerr.New(gwerr.Operation, "the last message in the chat request should be a user message")
	}
	text, ok := last.Text()
	if !ok {
		return nil, gwerr.New(gwerr.Operation, "the last message in the chat request should be a user message")
	}

	out := make([]models.Message, len(messages))
	copy(out, messages)
	content := fmt.Sprintf(lastUserMessageTemplate, context, strings.TrimSpace(text))
	out[len(out)-1] = last.WithText(content)
	return out, nil
}
