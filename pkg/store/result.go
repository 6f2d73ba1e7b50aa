package store

// QuizOptionCount is the exact number of answer options every quiz item carries
const QuizOptionCount = 4

type QuizItem struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// Valid reports whether the item can be shown to a student as-is
func (q QuizItem) Valid() bool {
	if q.Question == "" || len(q.Options) != QuizOptionCount {
		return false
	}
	for _, opt := range q.Options {
		if opt == "" {
			return false
		}
	}
	return q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

type Quiz struct {
	Title      string     `json:"title"`
	Difficulty string     `json:"difficulty"`
	Items      []QuizItem `json:"items"`
}

type StudySession struct {
	Time       string   `json:"time"`
	Topic      string   `json:"topic"`
	Source     string   `json:"source,omitempty"`
	Activities []string `json:"activities"`
}

type StudyPlanDay struct {
	Day      int            `json:"day"`
	Date     string         `json:"date"`
	Title    string         `json:"title,omitempty"`
	Sessions []StudySession `json:"sessions"`
}

type StudyPlan struct {
	Title     string         `json:"title"`
	TotalDays int            `json:"total_days"`
	Days      []StudyPlanDay `json:"days"`
}

// ChatReply is a free-text answer grounded in the selected documents
type ChatReply struct {
	Text              string   `json:"text"`
	SourceDocumentIDs []string `json:"source_document_ids"`
}

type FailureKind string

const (
	FailureNoContext           FailureKind = "no_context"
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureMalformedOutput     FailureKind = "malformed_output"
	FailureUnknown             FailureKind = "unknown"
)

// Failure is a user-facing outcome, not a Go error. Message is safe to display.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

type ResultKind string

const (
	ResultChatReply ResultKind = "chat_reply"
	ResultQuiz      ResultKind = "quiz"
	ResultStudyPlan ResultKind = "study_plan"
	ResultFailure   ResultKind = "failure"
)

// GenerationResult carries exactly one of Reply, Quiz, Plan or Failure,
// as named by Kind.
type GenerationResult struct {
	Kind    ResultKind `json:"kind"`
	Reply   *ChatReply `json:"reply,omitempty"`
	Quiz    *Quiz      `json:"quiz,omitempty"`
	Plan    *StudyPlan `json:"plan,omitempty"`
	Failure *Failure   `json:"failure,omitempty"`
}

func NewChatReplyResult(text string, sourceIDs []string) *GenerationResult {
	return &GenerationResult{Kind: ResultChatReply, Reply: &ChatReply{Text: text, SourceDocumentIDs: sourceIDs}}
}

func NewQuizResult(q *Quiz) *GenerationResult {
	return &GenerationResult{Kind: ResultQuiz, Quiz: q}
}

func NewStudyPlanResult(p *StudyPlan) *GenerationResult {
	return &GenerationResult{Kind: ResultStudyPlan, Plan: p}
}

func NewFailureResult(kind FailureKind, message string) *GenerationResult {
	return &GenerationResult{Kind: ResultFailure, Failure: &Failure{Kind: kind, Message: message}}
}

func (r *GenerationResult) IsFailure() bool {
	return r != nil && r.Kind == ResultFailure
}

// GenerationRequest is the fully composed input for one provider call. It is never persisted.
type GenerationRequest struct {
	Prompt    string
	Mode      Mode
	Documents []Document
	NoContext bool
}

// SourceIDs lists the ids of the documents that made it into the prompt
func (r *GenerationRequest) SourceIDs() []string {
	ids := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		ids = append(ids, d.ID)
	}
	return ids
}
