package routing

import (
	"math"
	"strings"

	"github.com/hexfog/hexfog/internal/config"
)

// FlowConfig holds the turn-density thresholds. They are calibrated for a
// dense urban street grid.
type FlowConfig struct {
	// FreeFlowTurnsPerKm is the density below which a route scores 1.
	FreeFlowTurnsPerKm float64
	// ChoppyTurnsPerKm is the density above which a route scores 0.
	ChoppyTurnsPerKm float64
}

// DefaultFlowConfig returns the default thresholds (3 and 12 turns per km).
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		FreeFlowTurnsPerKm: 3,
		ChoppyTurnsPerKm:   12,
	}
}

// FlowConfigFromEnv reads FLOW_FREE_TURNS_PER_KM and FLOW_CHOPPY_TURNS_PER_KM.
func FlowConfigFromEnv() FlowConfig {
	def := DefaultFlowConfig()
	return FlowConfig{
		FreeFlowTurnsPerKm: config.Float("FLOW_FREE_TURNS_PER_KM", def.FreeFlowTurnsPerKm),
		ChoppyTurnsPerKm:   config.Float("FLOW_CHOPPY_TURNS_PER_KM", def.ChoppyTurnsPerKm),
	}
}

// FlowScorer computes FlowScores.
type FlowScorer struct {
	free   float64
	choppy float64
}

// NewFlowScorer creates a scorer. Zero or inverted thresholds take their defaults.
func NewFlowScorer(cfg FlowConfig) *FlowScorer {
	def := DefaultFlowConfig()
	if cfg.FreeFlowTurnsPerKm <= 0 {
		cfg.FreeFlowTurnsPerKm = def.FreeFlowTurnsPerKm
	}
	if cfg.ChoppyTurnsPerKm <= cfg.FreeFlowTurnsPerKm {
		cfg.ChoppyTurnsPerKm = cfg.FreeFlowTurnsPerKm + (def.ChoppyTurnsPerKm - def.FreeFlowTurnsPerKm)
	}
	return &FlowScorer{free: cfg.FreeFlowTurnsPerKm, choppy: cfg.ChoppyTurnsPerKm}
}

// Score counts flow interruptions along steps and normalises them by distance.
// A zero distance yields zero turns per km.
func (f *FlowScorer) Score(steps []RouteStep, totalDistanceMeters float64) FlowScore {
	turns := 0
	for _, s := range steps {
		if IsTurn(s.Maneuver) {
			turns++
		}
	}

	perKm := 0.0
	if totalDistanceMeters > 0 {
		perKm = float64(turns) / (totalDistanceMeters / 1000)
	}

	return FlowScore{
		TurnCount:   turns,
		TurnsPerKm:  round(perKm, 2),
		FlowPenalty: round(f.penalty(perKm), 3),
	}
}

// penalty maps turn density onto [0, 1], linear between the thresholds.
func (f *FlowScorer) penalty(perKm float64) float64 {
	switch {
	case perKm < f.free:
		return 1
	case perKm > f.choppy:
		return 0
	default:
		return 1 - (perKm-f.free)/(f.choppy-f.free)
	}
}

// ScoreFlow scores steps with the default thresholds.
func ScoreFlow(steps []RouteStep, totalDistanceMeters float64) FlowScore {
	return NewFlowScorer(DefaultFlowConfig()).Score(steps, totalDistanceMeters)
}

// IsTurn reports whether a maneuver interrupts the flow of travel. Explicit
// turns, end-of-road transitions and traffic circles always count. A name
// change counts only when it bends left or right; the modifier match is a
// substring match so values such as "slight left" qualify.
func IsTurn(m Maneuver) bool {
	switch m.Type {
	case ManeuverTurn, ManeuverEndOfRoad:
		return true
	case ManeuverRotary, ManeuverRoundabout:
		return true
	case ManeuverNewName:
		mod := strings.ToLower(m.Modifier)
		return strings.Contains(mod, "left") || strings.Contains(mod, "right")
	default:
		return false
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
