package controller

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-study-portal-be/internal/dto"
	"ai-study-portal-be/internal/pkg/serverutils"
	"ai-study-portal-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	owner      string
	lastSend   *dto.SendMessageRequest
	sendErr    error
	sessionErr error
}

func (f *fakeChatService) CreateSession(_ context.Context, owner string, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	f.owner = owner
	return &dto.CreateSessionResponse{SessionId: "s1"}, nil
}

func (f *fakeChatService) GetSession(_ context.Context, owner, id string) (*dto.SessionResponse, error) {
	f.owner = owner
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &dto.SessionResponse{Id: id, Mode: "chat", DocumentIds: []string{}, History: []store.Turn{}}, nil
}

func (f *fakeChatService) ListSessions(_ context.Context, owner string) ([]*dto.SessionSummaryResponse, error) {
	f.owner = owner
	return []*dto.SessionSummaryResponse{{Id: "s1"}}, nil
}

func (f *fakeChatService) UpdateDocuments(_ context.Context, owner, id string, req *dto.UpdateDocumentsRequest) (*dto.SessionResponse, error) {
	return &dto.SessionResponse{Id: id, DocumentIds: req.DocumentIds}, nil
}

func (f *fakeChatService) DeleteSession(_ context.Context, owner, id string) error {
	return f.sessionErr
}

func (f *fakeChatService) SendMessage(_ context.Context, owner string, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	f.owner = owner
	f.lastSend = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &dto.SendMessageResponse{SessionId: req.SessionId, Result: store.NewChatReplyResult("hi", nil)}, nil
}

func (f *fakeChatService) CanWatch(_ context.Context, owner, id string) bool {
	return f.sessionErr == nil
}

func newTestApp(svc *fakeChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(nil))
	NewChatController(svc, nil, serverutils.IdentityMiddleware("secret"), nil).RegisterRoutes(app.Group("/api"))
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, serverutils.Response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)

	var out serverutils.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestCreateSessionAnonymous(t *testing.T) {
	svc := &fakeChatService{}
	code, res := do(t, newTestApp(svc), "POST", "/api/chat/v1/session", "")
	assert.Equal(t, 200, code)
	assert.True(t, res.Success)
	assert.Equal(t, store.AnonymousOwner, svc.owner)
	assert.Equal(t, "s1", res.Data.(map[string]interface{})["session_id"])
}

func TestSendMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing session", `{"message":"hi"}`, 400},
		{"missing message", `{"session_id":"s1"}`, 400},
		{"bad mode", `{"session_id":"s1","message":"hi","mode":"essay"}`, 400},
		{"too many questions", `{"session_id":"s1","message":"hi","mode":"quiz","num_questions":50}`, 400},
		{"bad json", `{"session_id":`, 400},
		{"ok", `{"session_id":"s1","message":"hi","mode":"study_plan","days":5}`, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeChatService{}
			code, res := do(t, newTestApp(svc), "POST", "/api/chat/v1/message", tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.code == 200, res.Success)
			if tt.code != 200 {
				assert.Nil(t, svc.lastSend)
			}
		})
	}
}

func TestSendMessageKeepsScopeWhenOmitted(t *testing.T) {
	svc := &fakeChatService{}
	app := newTestApp(svc)

	code, _ := do(t, app, "POST", "/api/chat/v1/message", `{"session_id":"s1","message":"hi"}`)
	require.Equal(t, 200, code)
	assert.Nil(t, svc.lastSend.DocumentIds)

	code, _ = do(t, app, "POST", "/api/chat/v1/message", `{"session_id":"s1","message":"hi","document_ids":[]}`)
	require.Equal(t, 200, code)
	assert.NotNil(t, svc.lastSend.DocumentIds)
	assert.Empty(t, svc.lastSend.DocumentIds)
}

func TestSendMessageCallerErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{store.ErrSessionNotFound, 404},
		{store.ErrSessionBusy, 409},
		{store.ErrEmptyMessage, 400},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &fakeChatService{sendErr: tt.err}
			code, res := do(t, newTestApp(svc), "POST", "/api/chat/v1/message", `{"session_id":"s1","message":"hi"}`)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.err.Error(), res.Message)
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	svc := &fakeChatService{}
	app := newTestApp(svc)

	code, res := do(t, app, "GET", "/api/chat/v1/session/abc", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "abc", res.Data.(map[string]interface{})["id"])

	code, _ = do(t, app, "GET", "/api/chat/v1/sessions", "")
	assert.Equal(t, 200, code)

	code, res = do(t, app, "PUT", "/api/chat/v1/session/abc/documents", `{"document_ids":["d1","d2"]}`)
	assert.Equal(t, 200, code)
	assert.Len(t, res.Data.(map[string]interface{})["document_ids"], 2)

	code, _ = do(t, app, "PUT", "/api/chat/v1/session/abc/documents", `{"document_ids":[""]}`)
	assert.Equal(t, 400, code)

	code, _ = do(t, app, "DELETE", "/api/chat/v1/session/abc", "")
	assert.Equal(t, 200, code)

	svc.sessionErr = store.ErrSessionNotFound
	code, _ = do(t, app, "GET", "/api/chat/v1/session/abc", "")
	assert.Equal(t, 404, code)
	code, _ = do(t, app, "DELETE", "/api/chat/v1/session/abc", "")
	assert.Equal(t, 404, code)
}

func TestWatchWithoutHub(t *testing.T) {
	code, res := do(t, newTestApp(&fakeChatService{}), "GET", "/api/chat/v1/ws/chat/abc", "")
	assert.Equal(t, 503, code)
	assert.False(t, res.Success)
}

func TestInvalidTokenRejected(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/chat/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	res, err := newTestApp(&fakeChatService{}).Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
}
