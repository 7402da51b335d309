package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multirole-assistant/internal/config"
	"multirole-assistant/internal/core"
	"multirole-assistant/internal/llm"
	"multirole-assistant/internal/session"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, string, string, []llm.ChatMessage, float64, int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestRouter(completer llm.Completer) http.Handler {
	config.AppConfig.JWTSecret = "test-secret"
	registry := session.NewRegistry()
	chatService := core.NewChatService(completer)
	return NewRouter(NewAPIHandler(registry, chatService, 0))
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler) (string, LoginResponse) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/login", "", LoginRequest{Name: "Ucup", APIKey: "sk-or-test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp
}

func TestLogin(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "ok"})
	_, resp := login(t, router)

	assert.Equal(t, "Ucup", resp.State.UserName)
	assert.Equal(t, "assistant", resp.State.PersonaID)
	assert.Equal(t, llm.DefaultModelID, resp.State.ModelID)
	assert.Equal(t, session.DefaultRoomName, resp.State.ActiveRoom)
	require.Len(t, resp.State.Rooms, 1)
}

func TestLogin_RequiresName(t *testing.T) {
	router := newTestRouter(&stubCompleter{})
	rec := doJSON(t, router, http.MethodPost, "/api/login", "", LoginRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(&stubCompleter{})

	rec := doJSON(t, router, http.MethodGet, "/api/messages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/messages", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_DestroysSession(t *testing.T) {
	router := newTestRouter(&stubCompleter{})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The token is still valid JWT-wise but the session is gone.
	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostMessage_Success(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "short answer"})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, session.RoleAssistant, reply.Role)
	assert.Equal(t, "short answer", reply.Content)

	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	var msgs []session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
}

func TestPostMessage_Empty(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "unused"})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessage_PaymentRequired(t *testing.T) {
	router := newTestRouter(&stubCompleter{err: llm.ErrPaymentRequired})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Recommendation, "free-tier")
	assert.NotEmpty(t, resp.FreeModels)

	// The user message survives the failed turn.
	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	var msgs []session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "Halo", msgs[0].Content)
}

func TestPostMessage_UpstreamHTTPError(t *testing.T) {
	router := newTestRouter(&stubCompleter{err: &llm.HTTPError{Status: 503}})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 503, resp.UpstreamStatus)
}

func TestRoomLifecycle(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "ok"})
	token, _ := login(t, router)

	// Create switches to the new room.
	rec := doJSON(t, router, http.MethodPost, "/api/rooms", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Room 1", created["name"])

	// Rename it.
	rec = doJSON(t, router, http.MethodPut, "/api/rooms/Room%201", token, RenameRoomRequest{Name: "Project"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state sessionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "Project", state.ActiveRoom)

	// Default stays protected.
	rec = doJSON(t, router, http.MethodPut, "/api/rooms/Default", token, RenameRoomRequest{Name: "Other"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, router, http.MethodDelete, "/api/rooms/Default", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Rename collision.
	rec = doJSON(t, router, http.MethodPut, "/api/rooms/Project", token, RenameRoomRequest{Name: "Default"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Delete the active room: back to Default.
	rec = doJSON(t, router, http.MethodDelete, "/api/rooms/Project", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, session.DefaultRoomName, state.ActiveRoom)

	// Only Default remains: deleting anything else trips the last-room guard.
	rec = doJSON(t, router, http.MethodDelete, "/api/rooms/Ghost", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActivateRoom_SwitchesBuffers(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "ok"})
	token, _ := login(t, router)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "in default"})

	doJSON(t, router, http.MethodPost, "/api/rooms", token, nil) // Room 1, active
	rec := doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	var msgs []session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Empty(t, msgs)

	rec = doJSON(t, router, http.MethodPost, "/api/rooms/Default/activate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 2)
}

func TestActivatePersona(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "ok"})
	token, _ := login(t, router)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "history"})

	rec := doJSON(t, router, http.MethodPost, "/api/personas/guru/activate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state sessionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "guru", state.PersonaID)
	assert.Equal(t, 0.4, state.Temperature)
	assert.Equal(t, 200, state.MaxTokens)

	// Persona switch discards the visible conversation.
	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	var msgs []session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Empty(t, msgs)
}

func TestActivatePersona_Unknown(t *testing.T) {
	router := newTestRouter(&stubCompleter{})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/personas/wizard/activate", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateParams(t *testing.T) {
	router := newTestRouter(&stubCompleter{})
	token, _ := login(t, router)

	temp := 0.8
	tokens := 500
	rec := doJSON(t, router, http.MethodPut, "/api/params", token, UpdateParamsRequest{Temperature: &temp, MaxTokens: &tokens})
	require.Equal(t, http.StatusOK, rec.Code)

	var state sessionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 0.8, state.Temperature)
	assert.Equal(t, 500, state.MaxTokens)

	bad := 3.0
	rec = doJSON(t, router, http.MethodPut, "/api/params", token, UpdateParamsRequest{Temperature: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/params/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 0.3, state.Temperature)
	assert.Equal(t, 150, state.MaxTokens)
}

func TestSelectModel(t *testing.T) {
	router := newTestRouter(&stubCompleter{})
	token, _ := login(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/model", token, SelectModelRequest{Model: "openai/gpt-4o"})
	require.Equal(t, http.StatusOK, rec.Code)

	var state sessionStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "openai/gpt-4o", state.ModelID)

	rec = doJSON(t, router, http.MethodPut, "/api/model", token, SelectModelRequest{Model: "acme/nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReveal(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "hey"})
	token, _ := login(t, router)

	// Nothing to reveal yet.
	rec := doJSON(t, router, http.MethodGet, "/api/messages/latest/reveal", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})

	rec = doJSON(t, router, http.MethodGet, "/api/messages/latest/reveal", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	for _, ch := range []string{"h", "e", "y"} {
		assert.Contains(t, body, fmt.Sprintf("data: %s\n\n", ch))
	}
	assert.True(t, strings.HasSuffix(body, "event: done\ndata: \n\n"))
}

func TestReveal_MultiLineReply(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "a\nb"})
	token, _ := login(t, router)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})

	rec := doJSON(t, router, http.MethodGet, "/api/messages/latest/reveal", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A newline rune is framed as an event with two empty data lines, so
	// every event on the wire still terminates with exactly one blank line.
	want := "data: a\n\n" + "data: \ndata: \n\n" + "data: b\n\n" + "event: done\ndata: \n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestStats(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "12345678"})
	token, _ := login(t, router)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "1234"})

	rec := doJSON(t, router, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats session.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.RoomCount)
	assert.Equal(t, 1, stats.UserMessages)
	assert.Equal(t, 1, stats.AssistantMessages)
	assert.Equal(t, 3, stats.EstimatedTokens)
}

func TestClearRoom(t *testing.T) {
	router := newTestRouter(&stubCompleter{reply: "ok"})
	token, _ := login(t, router)

	doJSON(t, router, http.MethodPost, "/api/messages", token, PostMessageRequest{Content: "Halo"})
	rec := doJSON(t, router, http.MethodPost, "/api/rooms/clear", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/messages", token, nil)
	var msgs []session.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Empty(t, msgs)
}
