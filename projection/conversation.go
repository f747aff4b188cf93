// Package projection derives read views from the message archive.
// It never mutates storage; every view is safely re-computable.
package projection

import (
	"sort"

	"github.com/samber/lo"

	"trenchsocial/domain"
	"trenchsocial/repositories"
)

// ConversationIndexer groups a viewer's private archive into one summary per
// counterparty. The grouping key is the unordered participant pair, so A→B
// and B→A collapse into the same conversation.
type ConversationIndexer struct {
	messages repositories.IPrivateMessageRepository
}

func NewConversationIndexer(messages repositories.IPrivateMessageRepository) *ConversationIndexer {
	return &ConversationIndexer{messages: messages}
}

// Summarize returns one ConversationSummary per unordered pair the viewer
// participates in, holding that pair's most recent message, sorted newest
// conversation first. Ties on sentAt are broken by id descending so repeated
// calls over an unchanged archive return identical results.
func (ix *ConversationIndexer) Summarize(viewer string) ([]domain.ConversationSummary, error) {
	archive, err := ix.messages.ForUser(viewer)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]domain.PrivateMessage)
	for _, message := range archive {
		key := repositories.PairKey(message.SenderID, message.ReceiverID)
		current, ok := latest[key]
		if !ok || moreRecent(message, current) {
			latest[key] = message
		}
	}

	summaries := lo.MapToSlice(latest, func(_ string, message domain.PrivateMessage) domain.ConversationSummary {
		return domain.ConversationSummary{
			CounterpartID: counterpart(viewer, message),
			LastMessage:   message,
		}
	})
	sort.Slice(summaries, func(i, j int) bool {
		return moreRecent(summaries[i].LastMessage, summaries[j].LastMessage)
	})
	return summaries, nil
}

func moreRecent(a, b domain.PrivateMessage) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.After(b.SentAt)
	}
	return a.ID.String() > b.ID.String()
}

// counterpart resolves "the other participant" relative to the viewer. For a
// self-conversation both sides are the viewer.
func counterpart(viewer string, message domain.PrivateMessage) string {
	if message.SenderID == viewer {
		return message.ReceiverID
	}
	return message.SenderID
}
