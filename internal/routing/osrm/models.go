package osrm

// routeResponse is the body of an OSRM /route/v1 response.
type routeResponse struct {
	Code      string     `json:"code"`
	Message   string     `json:"message,omitempty"`
	Routes    []route    `json:"routes"`
	Waypoints []waypoint `json:"waypoints,omitempty"`
}

type route struct {
	Geometry   string  `json:"geometry"`
	Distance   float64 `json:"distance"`
	Duration   float64 `json:"duration"`
	Weight     float64 `json:"weight,omitempty"`
	WeightName string  `json:"weight_name,omitempty"`
	Legs       []leg   `json:"legs"`
}

type leg struct {
	Summary  string  `json:"summary"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Steps    []step  `json:"steps"`
}

type step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Geometry string   `json:"geometry,omitempty"`
	Name     string   `json:"name"`
	Ref      string   `json:"ref,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Maneuver maneuver `json:"maneuver"`
}

type maneuver struct {
	Type          string     `json:"type"`
	Modifier      string     `json:"modifier,omitempty"`
	Location      [2]float64 `json:"location"` // [lon, lat]
	BearingBefore float64    `json:"bearing_before"`
	BearingAfter  float64    `json:"bearing_after"`
	Exit          int        `json:"exit,omitempty"`
}

type waypoint struct {
	Name     string     `json:"name"`
	Location [2]float64 `json:"location"`
	Distance float64    `json:"distance"`
}

// Response codes returned in the "code" field.
const (
	codeOK             = "Ok"
	codeNoRoute        = "NoRoute"
	codeNoSegment      = "NoSegment"
	codeInvalidQuery   = "InvalidQuery"
	codeInvalidValue   = "InvalidValue"
	codeInvalidOptions = "InvalidOptions"
	codeInvalidURL     = "InvalidUrl"
	codeTooBig         = "TooBig"
)
