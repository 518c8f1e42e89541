package transition

import "github.com/campusgrid/campusgrid/pkg/gamestate"

// Table resolves a map-local grid coordinate to the map it transitions
// to, if any. The map layer supplies the table; this package only reads it.
type Table interface {
	LookupTransitionPoint(mapID string, pos gamestate.Position) (string, bool)
}

// PointTable is an in-memory Table keyed by map id and exact coordinate.
type PointTable map[string]map[gamestate.Position]string

func (t PointTable) LookupTransitionPoint(mapID string, pos gamestate.Position) (string, bool) {
	points, ok := t[mapID]
	if !ok {
		return "", false
	}
	target, ok := points[pos]
	return target, ok
}

// AddPoint registers a transition point on a map.
func (t PointTable) AddPoint(mapID string, pos gamestate.Position, targetMap string) {
	points, ok := t[mapID]
	if !ok {
		points = make(map[gamestate.Position]string)
		t[mapID] = points
	}
	points[pos] = targetMap
}
