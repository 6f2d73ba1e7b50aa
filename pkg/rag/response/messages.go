package response

import "ai-study-portal-be/pkg/store"

// FallbackMessage is shown whenever nothing more specific applies
const FallbackMessage = "Sorry, I encountered an error. Please try again."

const (
	MsgNoAnswer       = "no answer produced"
	MsgNoValidQuiz    = "no valid quiz questions could be read from the answer"
	MsgNoValidPlan    = "no valid study plan days could be read from the answer"
	MsgNoJSON         = "the answer did not contain structured data"
	MsgNoContext      = "I couldn't find any readable text in the selected documents. Select at least one document with content and try again."
	MsgUpstreamFailed = "The study assistant is temporarily unavailable. Please try again in a moment."
)

// ApologyText is the assistant turn recorded in history when a turn fails.
// It never includes provider details.
func ApologyText(kind store.FailureKind, mode store.Mode) string {
	switch kind {
	case store.FailureNoContext:
		return MsgNoContext
	case store.FailureUpstreamUnavailable:
		return MsgUpstreamFailed
	case store.FailureMalformedOutput:
		switch mode {
		case store.ModeQuiz:
			return "Sorry, I couldn't put together a usable quiz this time. Please try again."
		case store.ModeStudyPlan:
			return "Sorry, I couldn't put together a usable study plan this time. Please try again."
		}
		return "Sorry, I couldn't produce an answer this time. Please try again."
	}
	return FallbackMessage
}
