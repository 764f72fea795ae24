package app

import (
	"gorm.io/gorm"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/repos"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo
	Case      repos.CaseRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),
		Case:      repos.NewCaseRepo(db, log),
	}
}
