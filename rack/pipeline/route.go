package pipeline

import (
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// Route is an output channel routing mode. Routing is skipped while a
// stereo plugin is active.
type Route uint32

const (
	// RouteIndependent leaves both channels untouched.
	RouteIndependent Route = iota
	// RouteSpreadLeft spreads the left channel to both outputs:
	// L = L/2, R = L/2 + R.
	RouteSpreadLeft
	// RouteSpreadRight spreads the right channel to both outputs:
	// L = L + R/2, R = R/2.
	RouteSpreadRight
	// RouteSpreadBoth sends the average of both channels to both outputs.
	RouteSpreadBoth
	// RouteSwap exchanges the channels.
	RouteSwap
	// RouteMixLeftIntoRight moves left onto right: L = 0, R = L + R.
	RouteMixLeftIntoRight
	// RouteMixRightIntoLeft moves right onto left: L = L + R, R = 0.
	RouteMixRightIntoLeft
	// RouteMoveLeftSpreadRight moves left onto right and spreads right:
	// L = R/2, R = R/2 + L.
	RouteMoveLeftSpreadRight
	// RouteMoveRightSpreadLeft moves right onto left and spreads left:
	// L = L/2 + R, R = L/2.
	RouteMoveRightSpreadLeft

	numRoutes
)

var routeNames = [numRoutes]string{
	"independent",
	"spread-left",
	"spread-right",
	"spread-both",
	"swap",
	"mix-left-into-right",
	"mix-right-into-left",
	"move-left-spread-right",
	"move-right-spread-left",
}

// Valid reports whether r is a known route.
func (r Route) Valid() bool { return r < numRoutes }

func (r Route) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Route(%d)", uint32(r))
	}
	return routeNames[r]
}

// ParseRoute converts a name produced by Route.String.
func ParseRoute(s string) (Route, error) {
	for i, name := range routeNames {
		if name == s {
			return Route(i), nil
		}
	}
	return RouteIndependent, fmt.Errorf("pipeline: unknown route %q", s)
}

// RouteFromPair maps the per-channel stereo settings of the front panel
// (0 = keep, 1 = spread, 2 = move) to a Route.
func RouteFromPair(ch0, ch1 uint32) (Route, bool) {
	switch [2]uint32{ch0, ch1} {
	case [2]uint32{0, 0}:
		return RouteIndependent, true
	case [2]uint32{1, 0}:
		return RouteSpreadLeft, true
	case [2]uint32{0, 1}:
		return RouteSpreadRight, true
	case [2]uint32{1, 1}:
		return RouteSpreadBoth, true
	case [2]uint32{2, 2}:
		return RouteSwap, true
	case [2]uint32{2, 0}:
		return RouteMixLeftIntoRight, true
	case [2]uint32{0, 2}:
		return RouteMixRightIntoLeft, true
	case [2]uint32{2, 1}:
		return RouteMoveLeftSpreadRight, true
	case [2]uint32{1, 2}:
		return RouteMoveRightSpreadLeft, true
	}
	return RouteIndependent, false
}

// apply routes l and r in place. tmp must be at least len(l) long.
func (r Route) apply(l, rt, tmp []float64) {
	tmp = tmp[:len(l)]
	switch r {
	case RouteSpreadLeft:
		vecmath.ScaleBlock(l, l, 0.5)
		vecmath.AddBlockInPlace(rt, l)
	case RouteSpreadRight:
		vecmath.ScaleBlock(rt, rt, 0.5)
		vecmath.AddBlockInPlace(l, rt)
	case RouteSpreadBoth:
		vecmath.AddBlockInPlace(l, rt)
		vecmath.ScaleBlock(l, l, 0.5)
		copy(rt, l)
	case RouteSwap:
		for i := range l {
			l[i], rt[i] = rt[i], l[i]
		}
	case RouteMixLeftIntoRight:
		vecmath.AddBlockInPlace(rt, l)
		core.Zero(l)
	case RouteMixRightIntoLeft:
		vecmath.AddBlockInPlace(l, rt)
		core.Zero(rt)
	case RouteMoveLeftSpreadRight:
		vecmath.ScaleBlock(tmp, rt, 0.5)
		vecmath.AddBlockInPlace(l, tmp)
		copy(rt, l)
		copy(l, tmp)
	case RouteMoveRightSpreadLeft:
		vecmath.ScaleBlock(tmp, l, 0.5)
		vecmath.AddBlockInPlace(rt, tmp)
		copy(l, rt)
		copy(rt, tmp)
	}
}
