package scoring

import (
	"strings"
	"sync"
)

// SelectionState is an immutable copy of a selection.
type SelectionState struct {
	PlayerID string                `json:"player_id,omitempty"`
	Action   Action                `json:"action,omitempty"`
	Fields   map[Field]interface{} `json:"fields,omitempty"`
}

func (s SelectionState) has(field Field) bool {
	v, ok := s.Fields[field]
	if !ok || v == nil {
		return false
	}
	if str, isStr := v.(string); isStr {
		return strings.TrimSpace(str) != ""
	}
	return true
}

// Selection holds the admin's in-progress choices for the next action.
// All methods are safe for concurrent use.
type Selection struct {
	adapter SportAdapter

	mu       sync.RWMutex
	playerID string
	action   Action
	fields   map[Field]interface{}
}

// NewSelection creates a fresh selection seeded with the adapter defaults.
func NewSelection(adapter SportAdapter) *Selection {
	s := &Selection{adapter: adapter}
	s.fields = s.defaults()
	return s
}

func (s *Selection) defaults() map[Field]interface{} {
	fields := make(map[Field]interface{})
	for k, v := range s.adapter.DefaultFields() {
		fields[k] = v
	}
	return fields
}

// SetPlayer selects the acting player. A previously chosen action is kept.
func (s *Selection) SetPlayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = strings.TrimSpace(id)
}

// ClearPlayer unsets the player.
func (s *Selection) ClearPlayer() {
	s.SetPlayer("")
}

// SetAction selects the action; unknown actions are rejected and not stored.
func (s *Selection) SetAction(id Action) error {
	if !HasAction(s.adapter, id) {
		return invalid(ErrInvalidAction, "", id, "Unknown %s action %q", s.adapter.Sport(), id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = id
	return nil
}

// ClearAction unsets the action.
func (s *Selection) ClearAction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = ""
}

// SetAuxiliary validates and stores an auxiliary input.
func (s *Selection) SetAuxiliary(field Field, value interface{}) error {
	normalized, err := s.adapter.NormalizeField(field, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[field] = normalized
	return nil
}

// ClearAuxiliary removes an auxiliary input, restoring its default if it has one.
func (s *Selection) ClearAuxiliary(field Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.adapter.DefaultFields()[field]; ok {
		s.fields[field] = v
		return
	}
	delete(s.fields, field)
}

// State returns a copy of the current selection.
func (s *Selection) State() SelectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := make(map[Field]interface{}, len(s.fields))
	for k, v := range s.fields {
		fields[k] = v
	}
	return SelectionState{
		PlayerID: s.playerID,
		Action:   s.action,
		Fields:   fields,
	}
}

// Validate returns the first reason the selection cannot be submitted.
func (s *Selection) Validate() error {
	return Validate(s.adapter, s.State())
}

// IsSubmittable reports whether player, action and every required field are set.
func (s *Selection) IsSubmittable() bool {
	return s.Validate() == nil
}

// ResetAfterSubmit clears the action and restores auxiliary fields to their
// defaults. The player and the adapter's retained fields are kept so the next
// action for the same player (or the same batsman/bowler pair) needs no re-entry.
func (s *Selection) ResetAfterSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := s.defaults()
	for _, keep := range s.adapter.RetainedFields() {
		if v, ok := s.fields[keep]; ok {
			fields[keep] = v
		}
	}
	s.action = ""
	s.fields = fields
}

// Reset returns the selection to its freshly created state.
func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = ""
	s.action = ""
	s.fields = s.defaults()
}
