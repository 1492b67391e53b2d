package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fortuna/scoredesk/internal/matchscore"
)

// Action is a scoring event the admin can record.
type Action string

// Field names an auxiliary input of a selection.
type Field string

const (
	FieldBowler   Field = "bowlerId"
	FieldOutType  Field = "outType"
	FieldPointWon Field = "isPointWon"
)

// ActionSpec describes one action for a picker.
type ActionSpec struct {
	ID    Action `json:"id"`
	Label string `json:"label"`
}

// SportAdapter is the per-sport scoring policy: which actions exist, which
// inputs each needs, and how a complete selection becomes a request body.
type SportAdapter interface {
	Sport() matchscore.Sport
	ListActions() []ActionSpec
	RequiredFields(action Action) []Field
	// DefaultFields seeds a fresh selection.
	DefaultFields() map[Field]interface{}
	// RetainedFields survive the reset that follows a successful submission.
	RetainedFields() []Field
	NormalizeField(field Field, value interface{}) (interface{}, error)
	// PlayerKey is the id a selection carries for a match stat entry; it is
	// what the backend expects in the update body.
	PlayerKey(st matchscore.PlayerStat) string
	BuildPayload(state SelectionState) (matchscore.Payload, error)
	LiveSurface() Surface
}

// AdapterFor selects the adapter for a sport.
func AdapterFor(sport matchscore.Sport) (SportAdapter, error) {
	switch sport {
	case matchscore.SportCricket:
		return CricketAdapter{}, nil
	case matchscore.SportFootball:
		return FootballAdapter{}, nil
	case matchscore.SportBadminton:
		return BadmintonAdapter{}, nil
	}
	return nil, fmt.Errorf("no scoring adapter for sport %q", sport)
}

// HasAction reports whether id is one of the adapter's actions.
func HasAction(a SportAdapter, id Action) bool {
	for _, spec := range a.ListActions() {
		if spec.ID == id {
			return true
		}
	}
	return false
}

// Validate checks that state can be submitted under adapter a.
func Validate(a SportAdapter, state SelectionState) error {
	if state.PlayerID == "" {
		return invalid(ErrMissingPlayer, "", state.Action, "Please select a player")
	}
	if state.Action == "" {
		return invalid(ErrMissingAction, "", "", "Please select an action")
	}
	if !HasAction(a, state.Action) {
		return invalid(ErrInvalidAction, "", state.Action, "Unknown %s action %q", a.Sport(), state.Action)
	}
	for _, field := range a.RequiredFields(state.Action) {
		if !state.has(field) {
			return invalid(ErrMissingRequiredField, field, state.Action, "%s requires %s", state.Action, field)
		}
	}
	return nil
}

func unknownField(a SportAdapter, field Field) error {
	return invalid(ErrInvalidField, field, "", "%s does not take %s", a.Sport(), field)
}

func normalizeID(field Field, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, invalid(ErrInvalidField, field, "", "%s must be a non-empty id", field)
	}
	return strings.TrimSpace(s), nil
}

func normalizeBool(field Field, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b, nil
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "won", "win", "yes":
			return true, nil
		case "lost", "lose", "no":
			return false, nil
		}
	}
	return nil, invalid(ErrInvalidField, field, "", "%s must be true or false", field)
}
