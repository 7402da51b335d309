package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"multirole-assistant/internal/auth"
	"multirole-assistant/internal/core"
	"multirole-assistant/internal/llm"
	"multirole-assistant/internal/persona"
	"multirole-assistant/internal/reveal"
	"multirole-assistant/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

type APIHandler struct {
	registry       *session.Registry
	chatService    *core.ChatService
	revealInterval time.Duration
}

func NewAPIHandler(registry *session.Registry, cs *core.ChatService, revealInterval time.Duration) *APIHandler {
	return &APIHandler{
		registry:       registry,
		chatService:    cs,
		revealInterval: revealInterval,
	}
}

type errorResponse struct {
	Error          string   `json:"error"`
	Recommendation string   `json:"recommendation,omitempty"`
	FreeModels     []string `json:"free_models,omitempty"`
	UpstreamStatus int      `json:"upstream_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the typed controller/store/client errors to HTTP
// statuses. All of these are recoverable; the session stays usable.
func writeServiceError(w http.ResponseWriter, err error) {
	var httpErr *llm.HTTPError
	switch {
	case errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrInvalidParameter),
		errors.Is(err, core.ErrUnknownModel),
		errors.Is(err, session.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, persona.ErrNotFound), errors.Is(err, session.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrProtectedRoom):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrRoomExists), errors.Is(err, session.ErrLastRoom):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, llm.ErrCredentialMissing):
		writeError(w, http.StatusUnauthorized, "No API key available. Log in again with a valid key.")
	case errors.Is(err, llm.ErrPaymentRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:          "Payment required: the selected model needs credits.",
			Recommendation: "Switch to a free-tier model or top up your account.",
			FreeModels:     llm.FreeModelIDs(),
		})
	case errors.As(err, &httpErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:          httpErr.Error(),
			UpstreamStatus: httpErr.Status,
		})
	case errors.Is(err, llm.ErrUnreachable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("Unexpected service error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// AuthMiddleware resolves the bearer token to a live session.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		sessionID, err := auth.ValidateSessionToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		sess := h.registry.Get(sessionID)
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "Session not found, log in again")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(r *http.Request) *session.Session {
	return r.Context().Value(sessionContextKey).(*session.Session)
}

type sessionStateResponse struct {
	UserName    string                `json:"user_name"`
	PersonaID   string                `json:"persona_id"`
	ModelID     string                `json:"model_id"`
	ActiveRoom  string                `json:"active_room"`
	Temperature float64               `json:"temperature"`
	MaxTokens   int                   `json:"max_tokens"`
	Rooms       []session.RoomSummary `json:"rooms"`
}

func stateOf(sess *session.Session) sessionStateResponse {
	temperature, maxTokens := sess.Params()
	return sessionStateResponse{
		UserName:    sess.UserName,
		PersonaID:   sess.PersonaID(),
		ModelID:     sess.ModelID(),
		ActiveRoom:  sess.ActiveRoom(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Rooms:       sess.Rooms(),
	}
}

type LoginRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

type LoginResponse struct {
	Token string               `json:"token"`
	State sessionStateResponse `json:"state"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Display name is required")
		return
	}

	sess := h.chatService.NewSession(name, strings.TrimSpace(req.APIKey))
	h.registry.Add(sess)

	token, err := auth.GenerateSessionToken(sess.ID)
	if err != nil {
		log.Printf("Error generating token for session %s: %v", sess.ID, err)
		h.registry.Remove(sess.ID)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, State: stateOf(sess)})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	h.registry.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateOf(sessionFromContext(r)))
}

type personaResponse struct {
	persona.Persona
	Active bool `json:"active"`
}

func (h *APIHandler) ListPersonasHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	active := sess.PersonaID()

	personas := persona.List()
	resp := make([]personaResponse, 0, len(personas))
	for _, p := range personas {
		resp = append(resp, personaResponse{Persona: p, Active: p.ID == active})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ActivatePersonaHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	personaID := chi.URLParam(r, "personaID")

	if _, err := h.chatService.SwitchPersona(sess, personaID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

type modelResponse struct {
	llm.ModelInfo
	Active bool `json:"active"`
}

func (h *APIHandler) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	active := sess.ModelID()

	models := llm.ListModels()
	resp := make([]modelResponse, 0, len(models))
	for _, m := range models {
		resp = append(resp, modelResponse{ModelInfo: m, Active: m.ID == active})
	}
	writeJSON(w, http.StatusOK, resp)
}

type SelectModelRequest struct {
	Model string `json:"model"`
}

func (h *APIHandler) SelectModelHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)

	var req SelectModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.chatService.SelectModel(sess, req.Model); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

type UpdateParamsRequest struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

func (h *APIHandler) UpdateParamsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)

	var req UpdateParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Temperature != nil {
		if err := h.chatService.SetTemperature(sess, *req.Temperature); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if req.MaxTokens != nil {
		if err := h.chatService.SetMaxTokens(sess, *req.MaxTokens); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (h *APIHandler) ResetParamsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	if err := h.chatService.ResetParams(sess); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (h *APIHandler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFromContext(r).Rooms())
}

func (h *APIHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	name := sess.CreateRoom()
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// roomNameParam extracts and unescapes the {roomName} URL parameter; room
// names like "Room 1" arrive percent-encoded.
func roomNameParam(r *http.Request) string {
	name := chi.URLParam(r, "roomName")
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

func (h *APIHandler) ActivateRoomHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	sess.SwitchRoom(roomNameParam(r))
	writeJSON(w, http.StatusOK, stateOf(sess))
}

type RenameRoomRequest struct {
	Name string `json:"name"`
}

func (h *APIHandler) RenameRoomHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)

	var req RenameRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := sess.RenameRoom(roomNameParam(r), strings.TrimSpace(req.Name)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (h *APIHandler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	if err := sess.DeleteRoom(roomNameParam(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (h *APIHandler) ClearRoomHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)
	sess.ClearActive()
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFromContext(r).ActiveMessages())
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	reply, err := h.chatService.Submit(r.Context(), sess, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// RevealHandler streams the latest assistant reply character by character
// as server-sent events. The stored message is complete before the stream
// starts; closing the connection cancels the reveal without side effects.
func (h *APIHandler) RevealHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r)

	msg, ok := sess.LastAssistantMessage()
	if !ok {
		writeError(w, http.StatusNotFound, "No assistant reply to reveal")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range reveal.Stream(r.Context(), msg.Content, h.revealInterval) {
		writeSSEData(w, chunk)
		flusher.Flush()
	}
	fmt.Fprint(w, "event: done\ndata: \n\n")
	flusher.Flush()
}

// writeSSEData frames one chunk as a server-sent event. A newline inside
// the chunk becomes a second data line of the same event, which the SSE
// wire format reassembles into a newline on the client side. Writing the
// raw chunk would break event framing for multi-line replies.
func writeSSEData(w io.Writer, chunk string) {
	for _, line := range strings.Split(chunk, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFromContext(r).Snapshot())
}
