package response

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/pkg/store"
)

// Expectation carries what was asked of the provider, used to fill gaps
// and bound what is accepted back.
type Expectation struct {
	SourceDocumentIDs []string
	QuizItems         int
	Difficulty        string
	PlanDays          int
}

// Interpreter turns raw provider text into a typed result. Structured
// output is treated as untrusted: bad items are dropped and day numbers
// are rewritten rather than rejecting the whole answer.
type Interpreter struct {
	logger logger.ILogger
}

func NewInterpreter(log logger.ILogger) *Interpreter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Interpreter{logger: log}
}

func (i *Interpreter) Interpret(mode store.Mode, raw string, exp Expectation) *store.GenerationResult {
	switch mode {
	case store.ModeQuiz:
		return i.interpretQuiz(raw, exp)
	case store.ModeStudyPlan:
		return i.interpretPlan(raw, exp)
	default:
		if strings.TrimSpace(raw) == "" {
			return store.NewFailureResult(store.FailureMalformedOutput, MsgNoAnswer)
		}
		return store.NewChatReplyResult(raw, exp.SourceDocumentIDs)
	}
}

// ---------------------------------------------------------------------------
// quiz
// ---------------------------------------------------------------------------

type rawQuiz struct {
	Title      string            `json:"title"`
	Difficulty string            `json:"difficulty"`
	Questions  []json.RawMessage `json:"questions"`
	Items      []json.RawMessage `json:"items"`
}

type rawQuizItem struct {
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectIndex  *int            `json:"correct_index"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
}

func (i *Interpreter) interpretQuiz(raw string, exp Expectation) *store.GenerationResult {
	var (
		quiz    rawQuiz
		items   []store.QuizItem
		dropped int
	)
	seen := eachJSON(raw, func(payload json.RawMessage) bool {
		quiz, items, dropped = parseQuiz(payload)
		return len(items) > 0
	})
	if !seen {
		i.logger.Warn("Interpreter", "Quiz answer had no JSON payload", map[string]interface{}{"length": len(raw)})
		return store.NewFailureResult(store.FailureMalformedOutput, MsgNoJSON)
	}

	if exp.QuizItems > 0 && len(items) > exp.QuizItems {
		items = items[:exp.QuizItems]
	}

	if dropped > 0 {
		i.logger.Warn("Interpreter", "Dropped invalid quiz items", map[string]interface{}{
			"dropped": dropped,
			"kept":    len(items),
		})
	}
	if len(items) == 0 {
		return store.NewFailureResult(store.FailureMalformedOutput, MsgNoValidQuiz)
	}

	title := strings.TrimSpace(quiz.Title)
	if title == "" {
		title = "Practice Quiz"
	}
	difficulty := strings.ToLower(strings.TrimSpace(quiz.Difficulty))
	if difficulty == "" {
		difficulty = exp.Difficulty
	}

	return store.NewQuizResult(&store.Quiz{Title: title, Difficulty: difficulty, Items: items})
}

// parseQuiz reads one candidate payload, either a quiz object or a bare
// list of questions
func parseQuiz(payload json.RawMessage) (rawQuiz, []store.QuizItem, int) {
	var quiz rawQuiz
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &quiz.Questions); err != nil {
			return rawQuiz{}, nil, 0
		}
	} else if err := json.Unmarshal(payload, &quiz); err != nil {
		return rawQuiz{}, nil, 0
	}

	candidates := quiz.Questions
	if len(candidates) == 0 {
		candidates = quiz.Items
	}

	items := make([]store.QuizItem, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		item, ok := parseQuizItem(c)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return quiz, items, dropped
}

func parseQuizItem(data json.RawMessage) (store.QuizItem, bool) {
	var r rawQuizItem
	if err := json.Unmarshal(data, &r); err != nil {
		return store.QuizItem{}, false
	}

	item := store.QuizItem{
		Question:    strings.TrimSpace(r.Question),
		Options:     make([]string, 0, len(r.Options)),
		Explanation: strings.TrimSpace(r.Explanation),
	}
	for _, opt := range r.Options {
		item.Options = append(item.Options, strings.TrimSpace(opt))
	}

	switch {
	case r.CorrectIndex != nil:
		item.CorrectIndex = *r.CorrectIndex
	case len(r.CorrectAnswer) > 0:
		idx, ok := resolveAnswer(r.CorrectAnswer, item.Options)
		if !ok {
			return store.QuizItem{}, false
		}
		item.CorrectIndex = idx
	default:
		return store.QuizItem{}, false
	}

	return item, item.Valid()
}

// resolveAnswer accepts an index, a letter A-D, a numeric string or the
// option text itself
func resolveAnswer(data json.RawMessage, options []string) (int, bool) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if len(s) == 1 {
		if c := strings.ToUpper(s)[0]; c >= 'A' && c < 'A'+store.QuizOptionCount {
			return int(c - 'A'), true
		}
	}
	for idx, opt := range options {
		if strings.EqualFold(opt, s) {
			return idx, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// study plan
// ---------------------------------------------------------------------------

type rawPlan struct {
	Title    string   `json:"title"`
	Days     []rawDay `json:"days"`
	Schedule []rawDay `json:"schedule"`
}

type rawDay struct {
	Date     string            `json:"date"`
	Title    string            `json:"title"`
	DayTitle string            `json:"dayTitle"`
	Sessions []json.RawMessage `json:"sessions"`
}

type rawSession struct {
	Time       string          `json:"time"`
	Topic      string          `json:"topic"`
	Source     string          `json:"source"`
	Activities json.RawMessage `json:"activities"`
}

func (i *Interpreter) interpretPlan(raw string, exp Expectation) *store.GenerationResult {
	var (
		plan    rawPlan
		days    []store.StudyPlanDay
		rawDays int
	)
	seen := eachJSON(raw, func(payload json.RawMessage) bool {
		plan, days, rawDays = parsePlan(payload)
		return len(days) > 0
	})
	if !seen {
		i.logger.Warn("Interpreter", "Study plan answer had no JSON payload", map[string]interface{}{"length": len(raw)})
		return store.NewFailureResult(store.FailureMalformedOutput, MsgNoJSON)
	}

	if exp.PlanDays > 0 && len(days) > exp.PlanDays {
		days = days[:exp.PlanDays]
	}
	if len(days) == 0 {
		i.logger.Warn("Interpreter", "Study plan had no usable days", map[string]interface{}{"raw_days": rawDays})
		return store.NewFailureResult(store.FailureMalformedOutput, MsgNoValidPlan)
	}

	// provider day numbers are ignored; array order is authoritative
	for idx := range days {
		days[idx].Day = idx + 1
		if days[idx].Date == "" {
			days[idx].Date = fmt.Sprintf("Day %d", idx+1)
		}
	}

	title := strings.TrimSpace(plan.Title)
	if title == "" {
		title = "Study Plan"
	}
	return store.NewStudyPlanResult(&store.StudyPlan{Title: title, TotalDays: len(days), Days: days})
}

// parsePlan reads one candidate payload, either a plan object or a bare
// list of days. Days without a usable session are skipped.
func parsePlan(payload json.RawMessage) (rawPlan, []store.StudyPlanDay, int) {
	var plan rawPlan
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &plan.Days); err != nil {
			return rawPlan{}, nil, 0
		}
	} else if err := json.Unmarshal(payload, &plan); err != nil {
		return rawPlan{}, nil, 0
	}

	rawDays := plan.Days
	if len(rawDays) == 0 {
		rawDays = plan.Schedule
	}

	days := make([]store.StudyPlanDay, 0, len(rawDays))
	for _, rd := range rawDays {
		sessions := parseSessions(rd.Sessions)
		if len(sessions) == 0 {
			continue
		}
		title := strings.TrimSpace(rd.Title)
		if title == "" {
			title = strings.TrimSpace(rd.DayTitle)
		}
		days = append(days, store.StudyPlanDay{
			Date:     strings.TrimSpace(rd.Date),
			Title:    title,
			Sessions: sessions,
		})
	}
	return plan, days, len(rawDays)
}

func parseSessions(data []json.RawMessage) []store.StudySession {
	out := make([]store.StudySession, 0, len(data))
	for _, d := range data {
		var r rawSession
		if err := json.Unmarshal(d, &r); err != nil {
			continue
		}
		topic := strings.TrimSpace(r.Topic)
		if topic == "" {
			continue
		}
		out = append(out, store.StudySession{
			Time:       strings.TrimSpace(r.Time),
			Topic:      topic,
			Source:     strings.TrimSpace(r.Source),
			Activities: parseActivities(r.Activities),
		})
	}
	return out
}

func parseActivities(data json.RawMessage) []string {
	activities := []string{}
	if len(data) == 0 {
		return activities
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		for _, a := range list {
			if a = strings.TrimSpace(a); a != "" {
				activities = append(activities, a)
			}
		}
		return activities
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			activities = append(activities, single)
		}
	}
	return activities
}
