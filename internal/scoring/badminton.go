package scoring

import "github.com/fortuna/scoredesk/internal/matchscore"

const (
	BadmintonPoint   Action = "point"
	BadmintonAce     Action = "ace"
	BadmintonSmash   Action = "smash"
	BadmintonNetPlay Action = "netPlay"
)

// BadmintonAdapter records rallies. isPointWon defaults to true; false
// records the rally as a point lost.
type BadmintonAdapter struct{}

func (BadmintonAdapter) Sport() matchscore.Sport { return matchscore.SportBadminton }

func (BadmintonAdapter) ListActions() []ActionSpec {
	return []ActionSpec{
		{ID: BadmintonPoint, Label: "Add Point (+1)"},
		{ID: BadmintonAce, Label: "Ace"},
		{ID: BadmintonSmash, Label: "Smash"},
		{ID: BadmintonNetPlay, Label: "Net Play"},
	}
}

func (BadmintonAdapter) RequiredFields(Action) []Field { return []Field{FieldPointWon} }

func (BadmintonAdapter) DefaultFields() map[Field]interface{} {
	return map[Field]interface{}{FieldPointWon: true}
}

func (BadmintonAdapter) RetainedFields() []Field { return nil }

func (a BadmintonAdapter) NormalizeField(field Field, value interface{}) (interface{}, error) {
	if field == FieldPointWon {
		return normalizeBool(field, value)
	}
	return nil, unknownField(a, field)
}

func (BadmintonAdapter) PlayerKey(st matchscore.PlayerStat) string { return st.PlayerID }

func (a BadmintonAdapter) BuildPayload(state SelectionState) (matchscore.Payload, error) {
	if err := Validate(a, state); err != nil {
		return nil, err
	}
	return matchscore.Payload{
		"playerId":   state.PlayerID,
		"eventType":  string(state.Action),
		"isPointWon": state.Fields[FieldPointWon],
	}, nil
}

func (BadmintonAdapter) LiveSurface() Surface { return SurfaceBadmintonLive }
