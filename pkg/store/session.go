package store

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is a unit of study material resolved from the document store
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Mode selects which kind of output the next turn produces
type Mode string

const (
	ModeChat      Mode = "chat"
	ModeQuiz      Mode = "quiz"
	ModeStudyPlan Mode = "study_plan"
)

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	switch m {
	case ModeChat, ModeQuiz, ModeStudyPlan:
		return true
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnKind tags assistant turns that carry structured content
type TurnKind string

const (
	KindText      TurnKind = ""
	KindQuiz      TurnKind = "quiz"
	KindStudyPlan TurnKind = "study_plan"
	KindFailure   TurnKind = "failure"
)

// Turn is one immutable entry of a session's history
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Kind      TurnKind  `json:"kind,omitempty"`

	Quiz        *Quiz       `json:"quiz,omitempty"`
	StudyPlan   *StudyPlan  `json:"study_plan,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
}

// Session represents one conversation between a user and the assistant.
// Only the session manager mutates it; everyone else works on a Clone.
type Session struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	DocumentScope []string  `json:"document_scope"`
	History       []Turn    `json:"history"`
	Mode          Mode      `json:"mode"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AnonymousOwner is used when a session is created without an identity
const AnonymousOwner = "anonymous"

// Clone returns a deep copy safe to hand out to readers
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.DocumentScope = append([]string(nil), s.DocumentScope...)
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return &out
}

// RecentHistory returns at most n of the latest turns, oldest first
func (s *Session) RecentHistory(n int) []Turn {
	if n <= 0 || len(s.History) <= n {
		return append([]Turn(nil), s.History...)
	}
	return append([]Turn(nil), s.History[len(s.History)-n:]...)
}

// CanonicalID returns the lower-case hyphenated form of a uuid id so that
// scope entries and store results share one key. Other ids are only trimmed.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if uid, err := uuid.Parse(id); err == nil {
		return uid.String()
	}
	return id
}

// NormalizeScope canonicalises ids, drops blanks and duplicates and sorts
// the result. Scope is a set, so ordering carries no meaning.
func NormalizeScope(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = CanonicalID(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OwnedBy reports whether owner may read and write the session. Anonymous
// sessions are open to anyone holding the id.
func (s *Session) OwnedBy(owner string) bool {
	return s.Owner == AnonymousOwner || s.Owner == owner
}
