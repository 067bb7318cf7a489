package dispatch

import (
	"github.com/beltoedu/dispatchd/internal/chat"
)

// normalizeMessage backfills the legacy content field and drops the alias so
// only {role, content} goes upstream.
func normalizeMessage(m chat.Message) chat.Message {
	return chat.Message{Role: m.Role, Content: m.Text()}
}

// buildMessages merges the request's message-bearing fields into one list:
// history first, then bulk messages, then the new prompt (or its legacy
// "message" alias). Bulk messages and the prompt are de-duplicated against
// the accumulated list by identical {role, content}, so submitting the same
// turn through two fields yields exactly one message.
//
// The system message is not part of this list; the orchestrator prepends it
// after enrichment.
func buildMessages(req *chat.Request) []chat.Message {
	var msgs []chat.Message

	for _, m := range req.History {
		msgs = append(msgs, normalizeMessage(m))
	}

	for _, m := range req.Messages {
		msgs = appendUnique(msgs, normalizeMessage(m))
	}

	if req.Prompt != "" {
		msgs = appendUnique(msgs, chat.Message{Role: chat.RoleUser, Content: req.Prompt})
	} else if req.Message != "" {
		msgs = appendUnique(msgs, chat.Message{Role: chat.RoleUser, Content: req.Message})
	}

	return msgs
}

// appendUnique appends m unless an identical {role, content} pair is already
// present.
func appendUnique(msgs []chat.Message, m chat.Message) []chat.Message {
	for _, existing := range msgs {
		if existing.Role == m.Role && existing.Content == m.Content {
			return msgs
		}
	}
	return append(msgs, m)
}

// dropEmpty removes messages without content; the upstream API rejects them.
func dropEmpty(msgs []chat.Message) []chat.Message {
	valid := msgs[:0]
	for _, m := range msgs {
		if m.Content != "" {
			valid = append(valid, m)
		}
	}
	return valid
}
