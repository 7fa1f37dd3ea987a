package rag

import (
	"strings"

	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/pkg/models"
)

// healthSentinel is the literal marker a health-check probe appends to its
// message so the RAG pipeline can recognize and strip it without treating
// the probe as real conversational content, per original_source/src/rag.rs.
const healthSentinel = "<server-health>"

// DeriveQueryText walks messages from tail to head, collecting up to
// contextWindow user messages' text content, and joins them (oldest first)
// with "\n" to form the RAG query.
//
// The sentinel check is keyed to position in the *whole* message array, not
// to position among user messages: a user message ending in healthSentinel
// is included with the sentinel stripped, and the walk stops immediately,
// only when that message is the very last element of messages (idx 0 in the
// tail-to-head walk). If the same sentinel appears on an earlier user
// message, that message is skipped entirely — it is neither collected nor
// does it terminate the walk.
func DeriveQueryText(messages []models.Message, contextWindow int) (string, error) {
	if len(messages) == 0 {
		return "", gwerr.New(gwerr.BadRequest, "no messages in chat request")
	}

	var collected []string
	for idx, i := 0, len(messages)-1; i >= 0 && len(collected) < contextWindow; idx, i = idx+1, i-1 {
		m := messages[i]
		if m.Role != models.RoleUser {
			continue
		}
		text, ok := m.Text()
		if !ok {
			continue
		}

		if strings.HasSuffix(text, healthSentinel) {
			if idx == 0 {
				collected = append(collected, strings.TrimSuffix(text, healthSentinel))
				break
			}
			continue
		}

		collected = append(collected, text)
	}

	if len(collected) == 0 {
		return "", gwerr.New(gwerr.BadRequest, "No user messages found")
	}

	// collected is newest-first; reverse to oldest-first before joining.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, "\n"), nil
}
