package grid

import "github.com/hexfog/hexfog/internal/config"

// ConfigFromEnv reads the grid configuration from HEX_RESOLUTION and
// HEX_GAP_THRESHOLD_M.
func ConfigFromEnv() Config {
	return Config{
		Resolution:         config.Int("HEX_RESOLUTION", DefaultResolution),
		GapThresholdMeters: config.Float("HEX_GAP_THRESHOLD_M", DefaultGapThresholdMeters),
	}
}
