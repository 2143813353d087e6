package main

import (
	"database/sql"

	"github.com/akinalp/maelink/repository"
)

// Repositories groups every repository so the init functions take one
// parameter instead of four.
type Repositories struct {
	User      repository.UserRepository
	Post      repository.PostRepository
	Invite    repository.InviteRepository
	ActionLog repository.ActionLogRepository
}

func initRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:      repository.NewSQLiteUserRepo(db),
		Post:      repository.NewSQLitePostRepo(db),
		Invite:    repository.NewSQLiteInviteRepo(db),
		ActionLog: repository.NewSQLiteActionLogRepo(db),
	}
}
