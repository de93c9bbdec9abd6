package app

import (
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/utils"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:        utils.GetEnv("PORT", "8080", log),
		ServiceName: utils.GetEnv("SERVICE_NAME", "peerspark-ai", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	}
}
