package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ai-study-portal-be/internal/config"
	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/repository/memory"
	"ai-study-portal-be/pkg/llm"
	"ai-study-portal-be/pkg/llm/factory"
	"ai-study-portal-be/pkg/rag/orchestrator"
	"ai-study-portal-be/pkg/rag/prompt"
	"ai-study-portal-be/pkg/rag/session"
	"ai-study-portal-be/pkg/store"

	"github.com/fatih/color"
)

// inlineDocuments serves the files given on the command line
type inlineDocuments map[string]store.Document

func (d inlineDocuments) FetchText(_ context.Context, ids []string) (*store.FetchResult, error) {
	res := &store.FetchResult{Documents: map[string]store.Document{}}
	for _, id := range ids {
		if doc, ok := d[id]; ok {
			res.Documents[id] = doc
		} else {
			res.Missing = append(res.Missing, id)
		}
	}
	return res, nil
}

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func main() {
	mode := flag.String("mode", "chat", "chat, quiz or study_plan")
	message := flag.String("message", "Summarise the key ideas of this material.", "user message")
	questions := flag.Int("questions", prompt.DefaultQuizQuestions, "quiz questions")
	difficulty := flag.String("difficulty", prompt.DefaultQuizDifficulty, "quiz difficulty")
	days := flag.Int("days", prompt.DefaultPlanDays, "study plan days")
	flag.Parse()

	if flag.NArg() == 0 {
		color.Red("usage: simulate [flags] <document.txt>...")
		os.Exit(2)
	}

	docs := inlineDocuments{}
	scope := make([]string, 0, flag.NArg())
	for _, path := range flag.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			color.Red("Failed to read %s: %v", path, err)
			os.Exit(1)
		}
		id := filepath.Base(path)
		docs[id] = store.Document{ID: id, Title: id, Text: string(content)}
		scope = append(scope, id)
	}

	cfg := config.Load()
	log := logger.NewZapLogger("logs/simulate.log", false)
	defer func() { _ = log.Sync() }()

	provider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OpenAIKey:     cfg.Keys.OpenAI,
		HFBaseURL:     cfg.Ai.HuggingFaceBaseURL,
		HFKey:         cfg.Keys.HuggingFace,
		GeminiKey:     cfg.Keys.GoogleGemini,
	})
	if err != nil {
		color.Red("Provider: %v", err)
		os.Exit(1)
	}

	sessions := session.NewManager(memory.NewSessionRepository(time.Hour, 10*time.Minute), nil, log, nil)
	orch := orchestrator.NewOrchestrator(
		sessions,
		docs,
		prompt.NewComposer(prompt.Config{HistoryWindow: cfg.Session.HistoryWindow, ContextBudget: cfg.Session.ContextBudget}),
		llm.NewClient(provider, llm.ClientConfig{AttemptTimeout: cfg.Ai.AttemptTimeout, RetryBackoff: cfg.Ai.RetryBackoff}, log, nil),
		nil,
		nil,
		log,
		nil,
		orchestrator.Config{Timeout: cfg.Ai.OrchestrationTimeout},
	)

	ctx := context.Background()
	s, err := orch.CreateSession(ctx, store.AnonymousOwner)
	if err != nil {
		color.Red("Create session: %v", err)
		os.Exit(1)
	}

	color.Cyan("Provider %s (%s), %d document(s), mode %s", cfg.Ai.LLMProvider, cfg.Ai.LLMModel, len(scope), *mode)
	color.Yellow("\nUSER: %s", *message)

	start := time.Now()
	result, err := orch.PostMessage(ctx, orchestrator.PostMessageInput{
		SessionID:   s.ID,
		Owner:       store.AnonymousOwner,
		Text:        *message,
		DocumentIDs: scope,
		Mode:        store.Mode(*mode),
		Quiz:        prompt.QuizOptions{NumQuestions: *questions, Difficulty: *difficulty},
		Plan:        prompt.PlanOptions{Days: *days},
	})
	if err != nil {
		color.Red("Rejected: %v", err)
		os.Exit(1)
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	if result.IsFailure() {
		color.Red("\nFAILED (%s) in %s: %s", result.Failure.Kind, elapsed, result.Failure.Message)
	} else {
		color.Green("\n%s in %s", result.Kind, elapsed)
	}

	switch result.Kind {
	case store.ResultChatReply:
		fmt.Println(result.Reply.Text)
	case store.ResultQuiz:
		prettyPrint(result.Quiz)
	case store.ResultStudyPlan:
		prettyPrint(result.Plan)
	}

	final, err := sessions.GetSession(ctx, s.ID)
	if err == nil {
		color.Cyan("\nHistory: %d turn(s), mode now %s", len(final.History), final.Mode)
	}
	if result.IsFailure() {
		os.Exit(1)
	}
}
