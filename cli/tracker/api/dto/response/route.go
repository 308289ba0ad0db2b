package response

import "github.com/daniil11ru/fieldnav/cli/tracker/types"

type Route struct {
	types.Route
	DistanceMeters float64 `json:"distance_m"`
}

func NewRoute(route types.Route) Route {
	return Route{Route: route, DistanceMeters: route.Distance()}
}

func NewRoutes(routes []types.Route) []Route {
	result := make([]Route, 0, len(routes))
	for _, r := range routes {
		result = append(result, NewRoute(r))
	}
	return result
}

type Saved struct {
	ID string `json:"id"`
}
