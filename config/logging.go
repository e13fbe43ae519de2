package config

import (
	"go.uber.org/zap"
)

// setLogger picks the zap preset for the runtime environment. Anything
// other than development or production (local runs, tests) gets the
// deterministic example logger.
func setLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "development":
		return zap.NewDevelopment()
	case "production":
		return zap.NewProduction()
	default:
		return zap.NewExample(), nil
	}
}
