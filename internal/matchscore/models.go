package matchscore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sport identifies which scoring rules a match follows.
type Sport string

const (
	SportCricket   Sport = "cricket"
	SportFootball  Sport = "football"
	SportBadminton Sport = "badminton"
)

// Sports lists every sport the desk can score.
var Sports = []Sport{SportCricket, SportFootball, SportBadminton}

// ParseSport accepts any casing ("Cricket", "BADMINTON").
func ParseSport(s string) (Sport, error) {
	sport := Sport(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sports {
		if sport == known {
			return sport, nil
		}
	}
	return "", fmt.Errorf("unknown sport %q", s)
}

// Status is the match lifecycle state reported by the backend.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
)

// Rank orders statuses so callers can enforce forward-only movement.
// Unknown statuses rank below upcoming.
func (s Status) Rank() int {
	switch Status(strings.ToLower(string(s))) {
	case StatusUpcoming:
		return 1
	case StatusLive:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// Normalize lowercases the backend value.
func (s Status) Normalize() Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// TeamRef is a match participant. The backend sends either a bare id
// string or a populated team document.
type TeamRef struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts "id" and {"_id": "...", "name": "..."}.
func (t *TeamRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.ID)
	}
	if string(data) == "null" {
		return nil
	}
	type plain TeamRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding team ref: %w", err)
	}
	*t = TeamRef(p)
	return nil
}

// Match is one authoritative snapshot of a match as reported by the backend.
type Match struct {
	ID          string          `json:"_id"`
	Sport       Sport           `json:"sport"`
	Status      Status          `json:"status"`
	Team1       TeamRef         `json:"team1"`
	Team2       TeamRef         `json:"team2"`
	Team1Name   string          `json:"team1Name,omitempty"`
	Team2Name   string          `json:"team2Name,omitempty"`
	Venue       string          `json:"venue,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
	Score       json.RawMessage `json:"score,omitempty"`
	PlayerStats []PlayerStat    `json:"playersStats,omitempty"`
	TossWinner  string          `json:"tossWinner,omitempty"`
	TossChoice  string          `json:"tossChoice,omitempty"`
}

// Team1Label returns the display name of the first team.
func (m *Match) Team1Label() string {
	if m.Team1Name != "" {
		return m.Team1Name
	}
	return m.Team1.Name
}

// Team2Label returns the display name of the second team.
func (m *Match) Team2Label() string {
	if m.Team2Name != "" {
		return m.Team2Name
	}
	return m.Team2.Name
}

// HasTeam reports whether teamID is one of the two participants.
func (m *Match) HasTeam(teamID string) bool {
	return teamID != "" && (teamID == m.Team1.ID || teamID == m.Team2.ID)
}

// Opponent returns the other participant's id.
func (m *Match) Opponent(teamID string) (string, bool) {
	switch teamID {
	case m.Team1.ID:
		return m.Team2.ID, true
	case m.Team2.ID:
		return m.Team1.ID, true
	}
	return "", false
}

// ResolveTeam maps either a team id or a team display name to a team id.
func (m *Match) ResolveTeam(idOrName string) (string, bool) {
	if m.HasTeam(idOrName) {
		return idOrName, true
	}
	switch {
	case idOrName != "" && strings.EqualFold(idOrName, m.Team1Label()):
		return m.Team1.ID, true
	case idOrName != "" && strings.EqualFold(idOrName, m.Team2Label()):
		return m.Team2.ID, true
	}
	return "", false
}

// FindPlayerStat looks up the running totals for a player.
func (m *Match) FindPlayerStat(playerID string) (*PlayerStat, bool) {
	for i := range m.PlayerStats {
		if m.PlayerStats[i].PlayerID == playerID {
			return &m.PlayerStats[i], true
		}
	}
	return nil, false
}

// CricketScore decodes the cricket score block.
func (m *Match) CricketScore() (CricketScore, error) {
	var s CricketScore
	err := m.decodeScore(&s)
	return s, err
}

// FootballScore decodes the football score block.
func (m *Match) FootballScore() (FootballScore, error) {
	var s FootballScore
	err := m.decodeScore(&s)
	return s, err
}

// BadmintonScore decodes the badminton score block.
func (m *Match) BadmintonScore() (BadmintonScore, error) {
	var s BadmintonScore
	err := m.decodeScore(&s)
	return s, err
}

func (m *Match) decodeScore(dst interface{}) error {
	if len(m.Score) == 0 || string(m.Score) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Score, dst); err != nil {
		return fmt.Errorf("decoding %s score: %w", m.Sport, err)
	}
	return nil
}

// Scoreline renders a one-line summary suitable for logs and the console.
func (m *Match) Scoreline() string {
	switch m.Sport.normalize() {
	case SportCricket:
		s, err := m.CricketScore()
		if err != nil {
			return "score unavailable"
		}
		return fmt.Sprintf("%s %d/%d (%s) - %s %d/%d (%s)",
			m.Team1Label(), s.Team1.Score, s.Team1.Wickets, s.Team1.Overs(),
			m.Team2Label(), s.Team2.Score, s.Team2.Wickets, s.Team2.Overs())
	case SportFootball:
		s, err := m.FootballScore()
		if err != nil {
			return "score unavailable"
		}
		return fmt.Sprintf("%s %d - %d %s", m.Team1Label(), s.Team1, s.Team2, m.Team2Label())
	case SportBadminton:
		s, err := m.BadmintonScore()
		if err != nil {
			return "score unavailable"
		}
		return fmt.Sprintf("%s %d - %d %s", m.Team1Label(), s.Player1, s.Player2, m.Team2Label())
	}
	return fmt.Sprintf("%s vs %s", m.Team1Label(), m.Team2Label())
}

func (s Sport) normalize() Sport {
	return Sport(strings.ToLower(string(s)))
}

// CricketInnings is one side's batting tally.
type CricketInnings struct {
	Score     int `json:"score"`
	Wickets   int `json:"wickets"`
	TeamBalls int `json:"teamballs"`
}

// Overs renders legal deliveries as "overs.balls".
func (i CricketInnings) Overs() string {
	return fmt.Sprintf("%d.%d", i.TeamBalls/6, i.TeamBalls%6)
}

// CricketScore is the cricket score block.
type CricketScore struct {
	Team1 CricketInnings `json:"team1"`
	Team2 CricketInnings `json:"team2"`
}

// FootballScore is the football score block.
type FootballScore struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// BadmintonScore is the badminton score block.
type BadmintonScore struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// PlayerStat is a player's running totals within one match, scoped to one team.
// Only the fields of the match's sport are populated.
type PlayerStat struct {
	ID         string `json:"_id,omitempty"`
	PlayerID   string `json:"player"`
	PlayerName string `json:"playerName,omitempty"`
	TeamID     string `json:"teamId,omitempty"`

	// cricket
	Runs       int     `json:"runs,omitempty"`
	BallsFaced int     `json:"ballsFaced,omitempty"`
	Fours      int     `json:"fours,omitempty"`
	Sixes      int     `json:"sixes,omitempty"`
	Overs      float64 `json:"overs,omitempty"`
	Wickets    int     `json:"wickets,omitempty"`
	Economy    float64 `json:"economy,omitempty"`

	// football
	Goals       int `json:"goals,omitempty"`
	Assists     int `json:"assists,omitempty"`
	YellowCards int `json:"yellowcards,omitempty"`
	RedCards    int `json:"redcards,omitempty"`
	Shots       int `json:"shots,omitempty"`
	Saves       int `json:"saves,omitempty"`
	Tackles     int `json:"tackles,omitempty"`

	// badminton
	PointsWon int `json:"pointsWon,omitempty"`
	Aces      int `json:"aces,omitempty"`
	Smashes   int `json:"smash,omitempty"`
	NetPlay   int `json:"netPlay,omitempty"`
}

// Player is a roster entry.
type Player struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Team is a roster document from the admin team endpoint.
type Team struct {
	ID      string   `json:"_id"`
	Name    string   `json:"name"`
	Players []Player `json:"players"`
}

// FindPlayer returns the roster entry for playerID.
func (t *Team) FindPlayer(playerID string) (Player, bool) {
	for _, p := range t.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// Board is the admin match list: everything that still needs scoring.
type Board struct {
	Upcoming []Match `json:"upcoming"`
	Live     []Match `json:"live"`
}

// Payload is the JSON body of a ball/event score update.
type Payload map[string]interface{}
