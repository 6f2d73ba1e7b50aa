package mapper

import (
	"encoding/json"
	"fmt"

	"ai-study-portal-be/internal/model"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToModel(s *store.Session) (*model.ChatSession, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", s.ID, err)
	}

	scope := s.DocumentScope
	if scope == nil {
		scope = []string{}
	}
	scopeJSON, err := json.Marshal(scope)
	if err != nil {
		return nil, err
	}

	return &model.ChatSession{
		Id:            id,
		Owner:         s.Owner,
		DocumentScope: datatypes.JSON(scopeJSON),
		Mode:          string(s.Mode),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}, nil
}

// ChatSessionToStore maps the row without history; turns are loaded separately
func (m *ChatMapper) ChatSessionToStore(cs *model.ChatSession) (*store.Session, error) {
	if cs == nil {
		return nil, nil
	}

	scope := []string{}
	if len(cs.DocumentScope) > 0 {
		if err := json.Unmarshal(cs.DocumentScope, &scope); err != nil {
			return nil, fmt.Errorf("decode document scope: %w", err)
		}
	}

	mode := store.Mode(cs.Mode)
	if !mode.Valid() {
		mode = store.ModeChat
	}

	return &store.Session{
		ID:            cs.Id.String(),
		Owner:         cs.Owner,
		DocumentScope: scope,
		History:       []store.Turn{},
		Mode:          mode,
		CreatedAt:     cs.CreatedAt,
		UpdatedAt:     cs.UpdatedAt,
	}, nil
}

// Turn Mappers

func (m *ChatMapper) ChatTurnToModel(sessionID uuid.UUID, seq int, t store.Turn) (*model.ChatTurn, error) {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid turn id %q: %w", t.ID, err)
	}

	var payload datatypes.JSON
	switch {
	case t.Quiz != nil:
		b, err := json.Marshal(t.Quiz)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(b)
	case t.StudyPlan != nil:
		b, err := json.Marshal(t.StudyPlan)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(b)
	}

	return &model.ChatTurn{
		Id:            id,
		ChatSessionId: sessionID,
		Seq:           seq,
		Role:          string(t.Role),
		Text:          t.Text,
		Kind:          string(t.Kind),
		Payload:       payload,
		FailureKind:   string(t.FailureKind),
		CreatedAt:     t.Timestamp,
	}, nil
}

func (m *ChatMapper) ChatTurnToStore(ct *model.ChatTurn) (store.Turn, error) {
	turn := store.Turn{
		ID:          ct.Id.String(),
		Role:        store.Role(ct.Role),
		Text:        ct.Text,
		Timestamp:   ct.CreatedAt,
		Kind:        store.TurnKind(ct.Kind),
		FailureKind: store.FailureKind(ct.FailureKind),
	}
	if len(ct.Payload) == 0 {
		return turn, nil
	}

	switch turn.Kind {
	case store.KindQuiz:
		var q store.Quiz
		if err := json.Unmarshal(ct.Payload, &q); err != nil {
			return store.Turn{}, fmt.Errorf("decode quiz payload: %w", err)
		}
		turn.Quiz = &q
	case store.KindStudyPlan:
		var p store.StudyPlan
		if err := json.Unmarshal(ct.Payload, &p); err != nil {
			return store.Turn{}, fmt.Errorf("decode study plan payload: %w", err)
		}
		turn.StudyPlan = &p
	}
	return turn, nil
}

func (m *ChatMapper) ChatTurnsToStore(turns []*model.ChatTurn) ([]store.Turn, error) {
	out := make([]store.Turn, 0, len(turns))
	for _, ct := range turns {
		t, err := m.ChatTurnToStore(ct)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
