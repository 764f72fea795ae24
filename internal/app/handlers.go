package app

import (
	httpH "github.com/seglab/segcase-backend/internal/http/handlers"
	httpMW "github.com/seglab/segcase-backend/internal/http/middleware"
	"github.com/seglab/segcase-backend/internal/pkg/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Auth   *httpH.AuthHandler
	Case   *httpH.CaseHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Auth:   httpH.NewAuthHandler(serviceset.Auth, serviceset.User),
		Case:   httpH.NewCaseHandler(log, serviceset.Case),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth),
	}
}
