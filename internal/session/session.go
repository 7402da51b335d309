package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRoomName is the distinguished room that always exists and can
// never be renamed or deleted.
const DefaultRoomName = "Default"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are never mutated after
// creation, only appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Room is an isolated, named, ordered list of messages.
type Room struct {
	Name     string
	Messages []Message
}

// RoomSummary is the read-only view of a room used for enumeration.
type RoomSummary struct {
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

// Session holds all mutable state of one logged-in browser session. Every
// browser session owns an isolated instance; the mutex serializes the
// mutations so the flush-then-load room protocol stays consistent when the
// HTTP layer delivers concurrent requests.
type Session struct {
	mu sync.Mutex

	ID        string
	UserName  string
	CreatedAt time.Time

	apiKey string // opaque secret, never persisted, dropped on logout

	personaID   string
	modelID     string
	temperature float64
	maxTokens   int

	// Per-persona markers that temperature/maxTokens were hand-edited and
	// must survive persona switches.
	manualTemp   map[string]bool
	manualTokens map[string]bool

	rooms       map[string]*Room
	roomOrder   []string
	roomCounter int

	activeRoom string
	// buffer is the in-memory message list currently displayed; it is kept
	// in sync with its backing room via flush/load.
	buffer []Message
}

// New creates a session in its initial state: a single empty "Default"
// room, the given persona and model active, and catalog defaults applied.
func New(userName, apiKey, personaID, modelID string, temperature float64, maxTokens int) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		UserName:     userName,
		CreatedAt:    time.Now(),
		apiKey:       apiKey,
		personaID:    personaID,
		modelID:      modelID,
		temperature:  temperature,
		maxTokens:    maxTokens,
		manualTemp:   make(map[string]bool),
		manualTokens: make(map[string]bool),
		rooms:        make(map[string]*Room),
		roomCounter:  1,
		activeRoom:   DefaultRoomName,
		buffer:       make([]Message, 0),
	}
	s.ensureLocked(DefaultRoomName)
	return s
}

// ensureLocked returns the named room, creating an empty one if absent.
// Callers must hold s.mu.
func (s *Session) ensureLocked(name string) *Room {
	if r, ok := s.rooms[name]; ok {
		return r
	}
	r := &Room{Name: name, Messages: make([]Message, 0)}
	s.rooms[name] = r
	s.roomOrder = append(s.roomOrder, name)
	return r
}

// EnsureRoom creates the named room if it does not exist yet.
func (s *Session) EnsureRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(name)
}

// flushLocked writes a non-empty active buffer back into its backing room.
// An empty buffer is a no-op: buffer and backing room are kept in sync at
// every clearing site, so there is nothing to write back.
func (s *Session) flushLocked() {
	if len(s.buffer) == 0 {
		return
	}
	r := s.ensureLocked(s.activeRoom)
	r.Messages = s.buffer
}

// Append adds a message to the active room and returns the stored copy.
func (s *Session) Append(role Role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.buffer = append(s.buffer, msg)
	r := s.ensureLocked(s.activeRoom)
	r.Messages = s.buffer
	return msg
}

// ActiveMessages returns a copy of the active buffer.
func (s *Session) ActiveMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// LastAssistantMessage returns the most recent assistant reply in the
// active buffer, if any.
func (s *Session) LastAssistantMessage() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.buffer) - 1; i >= 0; i-- {
		if s.buffer[i].Role == RoleAssistant {
			return s.buffer[i], true
		}
	}
	return Message{}, false
}

// SwitchRoom runs the mandatory flush-then-load sequence: the current
// buffer is written back to its room, then the target room's messages
// become the buffer (creating the room if absent).
func (s *Session) SwitchRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchLocked(name)
}

func (s *Session) switchLocked(name string) {
	s.flushLocked()
	s.activeRoom = name
	r := s.ensureLocked(name)
	s.buffer = r.Messages
	if s.buffer == nil {
		s.buffer = make([]Message, 0)
	}
}

// CreateRoom creates "Room N" with a counter that is never reused, even
// after deletions, and switches to it.
func (s *Session) CreateRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	for {
		name = fmt.Sprintf("Room %d", s.roomCounter)
		s.roomCounter++
		if _, exists := s.rooms[name]; !exists {
			break
		}
	}
	s.ensureLocked(name)
	s.switchLocked(name)
	return name
}

// RenameRoom moves a room to a new key, preserving its identity and
// message order.
func (s *Session) RenameRoom(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldName == DefaultRoomName {
		return ErrProtectedRoom
	}
	if newName == "" || newName == oldName {
		return ErrInvalidName
	}
	if _, exists := s.rooms[newName]; exists {
		return ErrRoomExists
	}
	r, ok := s.rooms[oldName]
	if !ok {
		return ErrRoomNotFound
	}

	r.Name = newName
	s.rooms[newName] = r
	delete(s.rooms, oldName)
	for i, n := range s.roomOrder {
		if n == oldName {
			s.roomOrder[i] = newName
			break
		}
	}
	if s.activeRoom == oldName {
		s.activeRoom = newName
	}
	return nil
}

// DeleteRoom removes a room. Deleting the active room switches to
// "Default" with an empty buffer: the displayed conversation becomes
// empty rather than showing stale content.
func (s *Session) DeleteRoom(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == DefaultRoomName {
		return ErrProtectedRoom
	}
	if len(s.rooms) == 1 {
		return ErrLastRoom
	}
	if _, ok := s.rooms[name]; !ok {
		return ErrRoomNotFound
	}

	delete(s.rooms, name)
	for i, n := range s.roomOrder {
		if n == name {
			s.roomOrder = append(s.roomOrder[:i], s.roomOrder[i+1:]...)
			break
		}
	}
	if s.activeRoom == name {
		s.activeRoom = DefaultRoomName
		s.buffer = make([]Message, 0)
		// Keep "Default" in sync with the emptied buffer, same as
		// ClearActive. Leaving its old messages behind would let the next
		// append overwrite them wholesale, or a switch away and back
		// resurrect content that was just shown as cleared.
		s.ensureLocked(DefaultRoomName).Messages = s.buffer
	}
	return nil
}

// ClearActive empties the active room, both the buffer and the backing
// room entry.
func (s *Session) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = make([]Message, 0)
	r := s.ensureLocked(s.activeRoom)
	r.Messages = s.buffer
}

// Rooms lists all rooms in creation order.
func (s *Session) Rooms() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RoomSummary, 0, len(s.roomOrder))
	for _, name := range s.roomOrder {
		r := s.rooms[name]
		count := len(r.Messages)
		if name == s.activeRoom {
			count = len(s.buffer)
		}
		out = append(out, RoomSummary{Name: name, MessageCount: count, Active: name == s.activeRoom})
	}
	return out
}

func (s *Session) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

func (s *Session) PersonaID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaID
}

func (s *Session) SetPersona(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personaID = id
}

func (s *Session) ModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

func (s *Session) SetModel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = id
}

// Params returns the current generation parameters.
func (s *Session) Params() (temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature, s.maxTokens
}

// SetTemperature records a hand-edited temperature for the active persona.
func (s *Session) SetTemperature(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = v
	s.manualTemp[s.personaID] = true
}

// SetMaxTokens records a hand-edited max token count for the active persona.
func (s *Session) SetMaxTokens(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxTokens = n
	s.manualTokens[s.personaID] = true
}

// ApplyDefaults sets generation parameters without marking them as
// hand-edited. Each value is applied only if the matching manual-override
// flag for the given persona is unset.
func (s *Session) ApplyDefaults(personaID string, temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.manualTemp[personaID] {
		s.temperature = temperature
	}
	if !s.manualTokens[personaID] {
		s.maxTokens = maxTokens
	}
}

// ResetOverrides clears both manual-override flags for a persona and
// restores the supplied defaults.
func (s *Session) ResetOverrides(personaID string, temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.manualTemp, personaID)
	delete(s.manualTokens, personaID)
	s.temperature = temperature
	s.maxTokens = maxTokens
}

// HasManualTemp reports whether temperature was hand-edited for a persona.
func (s *Session) HasManualTemp(personaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualTemp[personaID]
}

// HasManualTokens reports whether max tokens was hand-edited for a persona.
func (s *Session) HasManualTokens(personaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualTokens[personaID]
}

// Stats summarizes the session for the sidebar statistics view.
type Stats struct {
	RoomCount         int `json:"room_count"`
	ActiveMessages    int `json:"active_messages"`
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	EstimatedTokens   int `json:"estimated_tokens"`
}

// Snapshot computes chat statistics over the active buffer.
func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		RoomCount:      len(s.rooms),
		ActiveMessages: len(s.buffer),
	}
	chars := 0
	for _, m := range s.buffer {
		switch m.Role {
		case RoleUser:
			st.UserMessages++
		case RoleAssistant:
			st.AssistantMessages++
		}
		chars += len(m.Content)
	}
	st.EstimatedTokens = chars / 4 // rough 4-chars-per-token estimate
	return st
}
