package scoring

import (
	"strings"

	"github.com/fortuna/scoredesk/internal/matchscore"
)

const (
	CricketRun1   Action = "run1"
	CricketRun2   Action = "run2"
	CricketRun3   Action = "run3"
	CricketFour   Action = "four"
	CricketSix    Action = "six"
	CricketWide   Action = "wide"
	CricketWicket Action = "wicket"
)

// OutTypes are the dismissals the desk can record.
var OutTypes = []string{"bowled", "caught", "run out", "lbw", "stumped", "hit wicket"}

// CricketAdapter scores deliveries. The selection's player is the batsman;
// every delivery also needs a bowler from the opposing roster.
type CricketAdapter struct{}

func (CricketAdapter) Sport() matchscore.Sport { return matchscore.SportCricket }

func (CricketAdapter) ListActions() []ActionSpec {
	return []ActionSpec{
		{ID: CricketRun1, Label: "1 Run"},
		{ID: CricketRun2, Label: "2 Runs"},
		{ID: CricketRun3, Label: "3 Runs"},
		{ID: CricketFour, Label: "FOUR"},
		{ID: CricketSix, Label: "SIX"},
		{ID: CricketWide, Label: "Wide"},
		{ID: CricketWicket, Label: "WICKET"},
	}
}

func (CricketAdapter) RequiredFields(action Action) []Field {
	if action == CricketWicket {
		return []Field{FieldBowler, FieldOutType}
	}
	return []Field{FieldBowler}
}

func (CricketAdapter) DefaultFields() map[Field]interface{} { return nil }

// RetainedFields keeps the bowler so the batsman/bowler pair carries across an over.
func (CricketAdapter) RetainedFields() []Field { return []Field{FieldBowler} }

func (a CricketAdapter) NormalizeField(field Field, value interface{}) (interface{}, error) {
	switch field {
	case FieldBowler:
		return normalizeID(field, value)
	case FieldOutType:
		return normalizeOutType(value)
	}
	return nil, unknownField(a, field)
}

func (a CricketAdapter) BuildPayload(state SelectionState) (matchscore.Payload, error) {
	if err := Validate(a, state); err != nil {
		return nil, err
	}

	payload := matchscore.Payload{
		"batsmanId": state.PlayerID,
		"bowlerId":  state.Fields[FieldBowler],
	}
	switch state.Action {
	case CricketRun1:
		payload["runs"] = 1
	case CricketRun2:
		payload["runs"] = 2
	case CricketRun3:
		payload["runs"] = 3
	case CricketFour:
		payload["fours"] = true
	case CricketSix:
		payload["sixes"] = true
	case CricketWide:
		payload["whitballthrough"] = true
	case CricketWicket:
		payload["wicket"] = true
		payload["outType"] = state.Fields[FieldOutType]
	}
	return payload, nil
}

// PlayerKey is only used for stat lookups; cricket picks batsmen from the
// team rosters.
func (CricketAdapter) PlayerKey(st matchscore.PlayerStat) string { return st.PlayerID }

func (CricketAdapter) LiveSurface() Surface { return SurfaceCricketLive }

func normalizeOutType(value interface{}) (interface{}, error) {
	s, _ := value.(string)
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	for _, t := range OutTypes {
		if s == t {
			return t, nil
		}
	}
	return nil, invalid(ErrInvalidField, FieldOutType, CricketWicket,
		"out type must be one of: %s", strings.Join(OutTypes, ", "))
}
