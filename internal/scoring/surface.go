package scoring

import (
	"fmt"

	"github.com/fortuna/scoredesk/internal/matchscore"
)

// Surface is an admin screen the workflow can navigate to.
type Surface string

const (
	SurfaceMatchList     Surface = "match-list"
	SurfacePreLive       Surface = "pre-live"
	SurfaceCricketLive   Surface = "cricket-live"
	SurfaceFootballLive  Surface = "football-live"
	SurfaceBadmintonLive Surface = "badminton-live"
)

const adminRoot = "/admin/matchscoremaintain"

// Path is the dashboard route for the surface.
func (s Surface) Path(matchID string) string {
	switch s {
	case SurfacePreLive:
		return fmt.Sprintf("%s/status/%s", adminRoot, matchID)
	case SurfaceCricketLive:
		return fmt.Sprintf("%s/Cricket_Edit/%s", adminRoot, matchID)
	case SurfaceFootballLive:
		return fmt.Sprintf("%s/Football_Edit/%s", adminRoot, matchID)
	case SurfaceBadmintonLive:
		return fmt.Sprintf("%s/Badminton_Edit/%s", adminRoot, matchID)
	}
	return adminRoot
}

// IsLive reports whether the surface offers score-mutating actions.
func (s Surface) IsLive() bool {
	return s == SurfaceCricketLive || s == SurfaceFootballLive || s == SurfaceBadmintonLive
}

// SurfaceFor routes a match from the board: upcoming matches go to the
// pre-live form, live matches to their sport's editing surface.
func SurfaceFor(m *matchscore.Match) Surface {
	switch m.Status.Normalize() {
	case matchscore.StatusUpcoming:
		return SurfacePreLive
	case matchscore.StatusLive:
		if adapter, err := AdapterFor(m.Sport); err == nil {
			return adapter.LiveSurface()
		}
	}
	return SurfaceMatchList
}

// Navigator receives the navigation the lifecycle decides on.
type Navigator interface {
	Navigate(matchID string, to Surface)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(matchID string, to Surface)

// Navigate calls f.
func (f NavigatorFunc) Navigate(matchID string, to Surface) { f(matchID, to) }
