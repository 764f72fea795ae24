package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/services"
)

type Services struct {
	Auth    services.AuthService
	User    services.UserService
	Staging services.StagingService
	Engine  services.SegmentationClient
	Case    services.CaseService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	staging, err := services.NewStagingService(log, cfg.UploadRoot, int64(cfg.MaxFileSizeMB)*1024*1024)
	if err != nil {
		return Services{}, fmt.Errorf("init staging service: %w", err)
	}
	engine, err := services.NewSegmentationClient(log, cfg.EngineURL, cfg.EngineTimeout)
	if err != nil {
		return Services{}, fmt.Errorf("init segmentation client: %w", err)
	}

	authService := services.NewAuthService(db, log, reposet.User, reposet.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	userService := services.NewUserService(db, log, reposet.User)
	caseService := services.NewCaseService(db, log, reposet.Case, staging, engine)

	return Services{
		Auth:    authService,
		User:    userService,
		Staging: staging,
		Engine:  engine,
		Case:    caseService,
	}, nil
}
