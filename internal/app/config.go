package app

import (
	"strings"
	"time"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/utils"
)

type Config struct {
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	UploadRoot    string
	MaxFileSizeMB int

	EngineURL     string
	EngineTimeout time.Duration

	AllowOrigins []string
	Environment  string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 7*86400, log)
	uploadRoot := utils.GetEnv("UPLOAD_ROOT", "./uploads", log)
	maxFileSizeMB := utils.GetEnvAsInt("MAX_FILE_SIZE_MB", 50, log)
	engineURL := utils.GetEnv("SEG_ENGINE_URL", "http://localhost:5001", log)
	engineTimeoutSeconds := utils.GetEnvAsInt("SEG_ENGINE_TIMEOUT", 120, log)
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)
	environment := utils.GetEnv("ENVIRONMENT", "development", log)

	var allowOrigins []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowOrigins = append(allowOrigins, origin)
		}
	}

	return Config{
		JWTSecretKey:    jwtSecretKey,
		AccessTokenTTL:  time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL: time.Duration(refreshTokenTTLSeconds) * time.Second,
		UploadRoot:      uploadRoot,
		MaxFileSizeMB:   maxFileSizeMB,
		EngineURL:       engineURL,
		EngineTimeout:   time.Duration(engineTimeoutSeconds) * time.Second,
		AllowOrigins:    allowOrigins,
		Environment:     environment,
	}
}
