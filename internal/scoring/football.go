package scoring

import "github.com/fortuna/scoredesk/internal/matchscore"

const (
	FootballGoal       Action = "goal"
	FootballAssist     Action = "assist"
	FootballYellowCard Action = "yellowcard"
	FootballRedCard    Action = "redcard"
	FootballSave       Action = "save"
	FootballShot       Action = "shot"
	FootballTackle     Action = "tackle"
)

// FootballAdapter records per-player events; only a player is needed.
type FootballAdapter struct{}

func (FootballAdapter) Sport() matchscore.Sport { return matchscore.SportFootball }

func (FootballAdapter) ListActions() []ActionSpec {
	return []ActionSpec{
		{ID: FootballGoal, Label: "Goal (+1 goal)"},
		{ID: FootballAssist, Label: "Record Assist (+1 assist)"},
		{ID: FootballYellowCard, Label: "Yellow Card (+1 YC)"},
		{ID: FootballRedCard, Label: "Red Card (+1 RC)"},
		{ID: FootballSave, Label: "Save (+1 save)"},
		{ID: FootballShot, Label: "Shot (+1 shot)"},
		{ID: FootballTackle, Label: "Tackle (+1 tackle)"},
	}
}

func (FootballAdapter) RequiredFields(Action) []Field { return nil }

func (FootballAdapter) DefaultFields() map[Field]interface{} { return nil }

func (FootballAdapter) RetainedFields() []Field { return nil }

func (a FootballAdapter) NormalizeField(field Field, _ interface{}) (interface{}, error) {
	return nil, unknownField(a, field)
}

// PlayerKey is the stat entry's own id; football updates address the entry,
// not the player.
func (FootballAdapter) PlayerKey(st matchscore.PlayerStat) string { return st.ID }

func (a FootballAdapter) BuildPayload(state SelectionState) (matchscore.Payload, error) {
	if err := Validate(a, state); err != nil {
		return nil, err
	}
	return matchscore.Payload{
		"player":    state.PlayerID,
		"eventType": string(state.Action),
	}, nil
}

func (FootballAdapter) LiveSurface() Surface { return SurfaceFootballLive }
