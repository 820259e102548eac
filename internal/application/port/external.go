package port

import "context"

// MessageSender delivers a plain text notification to an employee
type MessageSender interface {
	SendText(ctx context.Context, email string, content string) error
}

// SuggestionKind selects what a TextSuggester drafts
type SuggestionKind string

const (
	SuggestJustification SuggestionKind = "justification"
	SuggestReviewNote    SuggestionKind = "review_note"
)

// TextSuggester drafts free text for a requester or reviewer
type TextSuggester interface {
	Suggest(ctx context.Context, kind SuggestionKind, context map[string]string) (string, error)
}
