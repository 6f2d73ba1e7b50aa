package prompt

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-study-portal-be/pkg/store"
)

const (
	DefaultHistoryWindow = 10
	DefaultContextBudget = 24000 // runes of document text across all documents

	DefaultQuizQuestions  = 5
	MaxQuizQuestions      = 20
	DefaultQuizDifficulty = "medium"

	DefaultPlanDays = 7
	MaxPlanDays     = 30

	truncationMarker = "\n[... truncated ...]"
)

type QuizOptions struct {
	NumQuestions int
	Difficulty   string
}

// Normalize fills defaults and clamps values to what the quiz UI supports
func (o QuizOptions) Normalize() QuizOptions {
	if o.NumQuestions <= 0 {
		o.NumQuestions = DefaultQuizQuestions
	}
	if o.NumQuestions > MaxQuizQuestions {
		o.NumQuestions = MaxQuizQuestions
	}
	switch strings.ToLower(o.Difficulty) {
	case "easy", "medium", "hard":
		o.Difficulty = strings.ToLower(o.Difficulty)
	default:
		o.Difficulty = DefaultQuizDifficulty
	}
	return o
}

type PlanOptions struct {
	Days      int
	StartDate time.Time
}

func (o PlanOptions) Normalize() PlanOptions {
	if o.Days <= 0 {
		o.Days = DefaultPlanDays
	}
	if o.Days > MaxPlanDays {
		o.Days = MaxPlanDays
	}
	return o
}

type Config struct {
	HistoryWindow int
	ContextBudget int
}

// Input is everything one prompt is composed from
type Input struct {
	Mode      store.Mode
	Message   string
	History   []store.Turn
	Documents []store.Document
	Quiz      QuizOptions
	Plan      PlanOptions
}

// Composer builds one grounded prompt per turn
type Composer struct {
	cfg Config
}

func NewComposer(cfg Config) *Composer {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &Composer{cfg: cfg}
}

// Compose always returns a request. When no document text survives,
// NoContext is set and the caller decides whether to send it.
func (c *Composer) Compose(in Input) *store.GenerationRequest {
	docs := c.fitDocuments(in.Documents)
	history := in.History
	if len(history) > c.cfg.HistoryWindow {
		history = history[len(history)-c.cfg.HistoryWindow:]
	}

	var prompt strings.Builder
	writeReferenceMaterial(&prompt, docs)

	switch in.Mode {
	case store.ModeQuiz:
		writeQuizTask(&prompt, in.Quiz.Normalize())
	case store.ModeStudyPlan:
		writePlanTask(&prompt, in.Plan.Normalize())
	default:
		writeConversationHistory(&prompt, history)
		writeChatTask(&prompt)
	}

	writeUserQuestion(&prompt, in.Message, in.Mode)

	mode := in.Mode
	if !mode.Valid() {
		mode = store.ModeChat
	}
	return &store.GenerationRequest{
		Prompt:    prompt.String(),
		Mode:      mode,
		Documents: docs,
		NoContext: len(docs) == 0,
	}
}

// fitDocuments drops empty documents and spends the rune budget in order,
// so later documents are the first to be cut.
func (c *Composer) fitDocuments(docs []store.Document) []store.Document {
	remaining := c.cfg.ContextBudget
	out := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		if remaining <= 0 {
			break
		}
		if n := utf8.RuneCountInString(text); n > remaining {
			text = string([]rune(text)[:remaining]) + truncationMarker
			remaining = 0
		} else {
			remaining -= n
		}
		d.Text = text
		out = append(out, d)
	}
	return out
}

func writeReferenceMaterial(prompt *strings.Builder, docs []store.Document) {
	prompt.WriteString("<reference_material>\n")
	if len(docs) == 0 {
		prompt.WriteString("(no study material was provided)\n")
	}
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = d.ID
		}
		fmt.Fprintf(prompt, "--- DOCUMENT: %s ---\n", title)
		prompt.WriteString(d.Text)
		fmt.Fprintf(prompt, "\n--- END OF: %s ---\n", title)
	}
	prompt.WriteString("</reference_material>\n\n")
}

func writeConversationHistory(prompt *strings.Builder, history []store.Turn) {
	if len(history) == 0 {
		return
	}
	prompt.WriteString("<conversation_history>\n")
	for _, t := range history {
		speaker := "User"
		if t.Role == store.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(prompt, "%s: %s\n", speaker, t.Text)
	}
	prompt.WriteString("</conversation_history>\n\n")
}

func writeChatTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a patient study assistant helping a student understand their course material.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Answer ONLY from the text in <reference_material>. Do not use outside knowledge.\n")
	prompt.WriteString("2. If the material does not contain the answer, say explicitly that the selected documents do not cover it.\n")
	prompt.WriteString("3. Use the conversation history to resolve follow-up questions.\n")
	prompt.WriteString("4. Name the document you drew from when more than one was provided.\n")
	prompt.WriteString("5. Be clear and well-organized; use markdown lists for steps or enumerations.\n")
	prompt.WriteString("</guidelines>\n\n")
}

func writeQuizTask(prompt *strings.Builder, opts QuizOptions) {
	prompt.WriteString("<task>\n")
	fmt.Fprintf(prompt, "Create a quiz of exactly %d multiple-choice questions at %s difficulty, derived only from <reference_material>.\n", opts.NumQuestions, opts.Difficulty)
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<guidelines>\n")
	fmt.Fprintf(prompt, "1. Every question has exactly %d options and exactly one correct option.\n", store.QuizOptionCount)
	prompt.WriteString("2. correct_index is the 0-based position of the correct option.\n")
	prompt.WriteString("3. Every question has a short explanation that cites the material.\n")
	prompt.WriteString("4. Do not ask about anything the material does not state.\n")
	prompt.WriteString("</guidelines>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with JSON only, no prose, in this shape:\n")
	fmt.Fprintf(prompt, `{"title": "...", "difficulty": "%s", "questions": [{"question": "...", "options": ["...", "...", "...", "..."], "correct_index": 0, "explanation": "..."}]}`, opts.Difficulty)
	prompt.WriteString("\n</output_format>\n\n")
}

func writePlanTask(prompt *strings.Builder, opts PlanOptions) {
	prompt.WriteString("<task>\n")
	fmt.Fprintf(prompt, "Create a day-by-day study plan covering the material over %d days.\n", opts.Days)
	if !opts.StartDate.IsZero() {
		fmt.Fprintf(prompt, "Day 1 is %s.\n", opts.StartDate.Format("Monday, 2 January 2006"))
	}
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<guidelines>\n")
	fmt.Fprintf(prompt, "1. Produce exactly %d days numbered from 1.\n", opts.Days)
	prompt.WriteString("2. Every day has at least one session with a time slot, a topic, the source document and concrete activities.\n")
	prompt.WriteString("3. Spread topics so later days review earlier ones.\n")
	prompt.WriteString("4. Only plan topics that appear in <reference_material>.\n")
	prompt.WriteString("</guidelines>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with JSON only, no prose, in this shape:\n")
	prompt.WriteString(`{"title": "...", "days": [{"day": 1, "date": "...", "title": "...", "sessions": [{"time": "09:00 - 10:30", "topic": "...", "source": "...", "activities": ["..."]}]}]}`)
	prompt.WriteString("\n</output_format>\n\n")
}

func writeUserQuestion(prompt *strings.Builder, message string, mode store.Mode) {
	tag := "user_question"
	if mode == store.ModeQuiz || mode == store.ModeStudyPlan {
		tag = "user_request"
	}
	fmt.Fprintf(prompt, "<%s>\n%s\n</%s>\n\n", tag, message, tag)

	switch mode {
	case store.ModeQuiz, store.ModeStudyPlan:
		prompt.WriteString("Now return the JSON:")
	default:
		prompt.WriteString("Now provide your complete response based on the reference material:")
	}
}
