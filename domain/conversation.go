package domain

// ConversationSummary is the derived most-recent-message view for one
// unordered participant pair, relative to a queried viewer. It is never
// persisted; the indexer recomputes it from the archive on demand.
type ConversationSummary struct {
	CounterpartID string         `json:"counterpartId"`
	LastMessage   PrivateMessage `json:"lastMessage"`
}
