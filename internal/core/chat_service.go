package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"multirole-assistant/internal/llm"
	"multirole-assistant/internal/persona"
	"multirole-assistant/internal/session"
)

var (
	ErrEmptyInput       = errors.New("message content cannot be empty")
	ErrUnknownModel     = errors.New("model is not in the catalog")
	ErrInvalidParameter = errors.New("parameter out of range")
)

// Brevity rules appended to every persona's system prompt, mirroring the
// response contract all three personas share.
const brevityDirectives = `ALWAYS REMEMBER:
- Address the user by name when one is given
- ALWAYS respond in a SHORT and EFFICIENT way
- AT MOST 2-3 sentences for simple questions
- Straight to the point, no long introductions
- AVOID excessive explanation
- FOCUS on practical, applicable answers`

// ChatService orchestrates conversation turns and persona switches on top
// of the session state. It never leaves a room's message list in a partial
// state: a failed completion keeps the user's message and appends nothing.
type ChatService struct {
	completer llm.Completer
}

func NewChatService(completer llm.Completer) *ChatService {
	return &ChatService{completer: completer}
}

// NewSession builds a session in its initial state: the default persona
// active, its generation defaults applied, and the default model selected.
func (s *ChatService) NewSession(userName, apiKey string) *session.Session {
	p, err := persona.Get(persona.DefaultID)
	if err != nil {
		// The default persona is part of the fixed catalog; missing it is
		// a programmer error, not a runtime condition.
		panic(fmt.Sprintf("default persona missing from catalog: %v", err))
	}
	return session.New(userName, apiKey, p.ID, llm.DefaultModelID, p.DefaultTemperature, p.DefaultMaxTokens)
}

// Submit runs one conversation turn: append the user message, call the
// completion endpoint with the persona's system prompt and the full room
// history, then append the reply. The user message survives a failed turn.
func (s *ChatService) Submit(ctx context.Context, sess *session.Session, text string) (session.Message, error) {
	if strings.TrimSpace(text) == "" {
		return session.Message{}, ErrEmptyInput
	}

	sess.Append(session.RoleUser, text)

	p, err := persona.Get(sess.PersonaID())
	if err != nil {
		return session.Message{}, fmt.Errorf("active persona %q: %w", sess.PersonaID(), err)
	}

	messages := []llm.ChatMessage{{Role: "system", Content: s.systemPrompt(p, sess.UserName)}}
	for _, m := range sess.ActiveMessages() {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	temperature, maxTokens := sess.Params()
	reply, err := s.completer.Complete(ctx, sess.APIKey(), sess.ModelID(), messages, temperature, maxTokens)
	if err != nil {
		log.Printf("Completion failed for session %s (model %s): %v", sess.ID, sess.ModelID(), err)
		return session.Message{}, err
	}

	return sess.Append(session.RoleAssistant, reply), nil
}

// systemPrompt expands the persona's prompt with the user's display name
// and the shared brevity directives.
func (s *ChatService) systemPrompt(p persona.Persona, userName string) string {
	nameContext := ""
	if userName != "" {
		nameContext = fmt.Sprintf("The user's name is %s. ", userName)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", p.SystemPrompt, nameContext, brevityDirectives)
}

// SwitchPersona activates a new persona. The visible conversation history
// of the active room is discarded, the first recommended model present in
// the catalog is selected (keeping the prior model when none match), and
// catalog defaults are applied unless hand-edited values exist for the
// target persona.
func (s *ChatService) SwitchPersona(sess *session.Session, newID string) (persona.Persona, error) {
	if newID == sess.PersonaID() {
		return persona.Get(newID)
	}

	p, err := persona.Get(newID)
	if err != nil {
		return persona.Persona{}, err
	}

	sess.SetPersona(newID)
	sess.ClearActive()

	for _, modelID := range p.RecommendedModels {
		if _, ok := llm.LookupModel(modelID); ok {
			sess.SetModel(modelID)
			break
		}
	}

	sess.ApplyDefaults(newID, p.DefaultTemperature, p.DefaultMaxTokens)
	return p, nil
}

// SelectModel activates a model from the catalog.
func (s *ChatService) SelectModel(sess *session.Session, modelID string) error {
	if _, ok := llm.LookupModel(modelID); !ok {
		return ErrUnknownModel
	}
	sess.SetModel(modelID)
	return nil
}

// SetTemperature records a hand-edited temperature for the active persona.
func (s *ChatService) SetTemperature(sess *session.Session, v float64) error {
	if v < 0.0 || v > 1.0 {
		return fmt.Errorf("%w: temperature %v", ErrInvalidParameter, v)
	}
	sess.SetTemperature(v)
	return nil
}

// SetMaxTokens records a hand-edited output length for the active persona.
func (s *ChatService) SetMaxTokens(sess *session.Session, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: max tokens %d", ErrInvalidParameter, n)
	}
	sess.SetMaxTokens(n)
	return nil
}

// ResetParams clears both manual-override flags for the active persona and
// restores its catalog defaults.
func (s *ChatService) ResetParams(sess *session.Session) error {
	p, err := persona.Get(sess.PersonaID())
	if err != nil {
		return fmt.Errorf("active persona %q: %w", sess.PersonaID(), err)
	}
	sess.ResetOverrides(p.ID, p.DefaultTemperature, p.DefaultMaxTokens)
	return nil
}
