package dto

import (
	"time"

	"ai-study-portal-be/pkg/store"
)

type CreateSessionRequest struct {
	DocumentIds []string `json:"document_ids" validate:"omitempty,max=20,dive,required"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
}

type SessionResponse struct {
	Id          string       `json:"id"`
	Mode        string       `json:"mode"`
	DocumentIds []string     `json:"document_ids"`
	History     []store.Turn `json:"history"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type SessionSummaryResponse struct {
	Id          string    `json:"id"`
	Mode        string    `json:"mode"`
	DocumentIds []string  `json:"document_ids"`
	TurnCount   int       `json:"turn_count"`
	LastMessage string    `json:"last_message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UpdateDocumentsRequest struct {
	DocumentIds []string `json:"document_ids" validate:"max=20,dive,required"`
}

// SendMessageRequest is one user turn. Omitting document_ids keeps the
// session's current scope; an empty list clears it.
type SendMessageRequest struct {
	SessionId    string   `json:"session_id" validate:"required"`
	Message      string   `json:"message" validate:"required,max=8000"`
	DocumentIds  []string `json:"document_ids,omitempty" validate:"omitempty,max=20,dive,required"`
	Mode         string   `json:"mode,omitempty" validate:"omitempty,oneof=chat quiz study_plan"`
	NumQuestions int      `json:"num_questions,omitempty" validate:"omitempty,min=1,max=20"`
	Difficulty   string   `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Days         int      `json:"days,omitempty" validate:"omitempty,min=1,max=30"`
}

type SendMessageResponse struct {
	SessionId string                  `json:"session_id"`
	Result    *store.GenerationResult `json:"result"`
}
