package storage

import (
	"github.com/ternarybob/arbor"
)

// UserDB is a user-bound database handle. Every read and write is implicitly
// scoped to the owning user; there is no way to address another user's data
// through it.
type UserDB struct {
	userID string
	db     *BadgerDB
	logger arbor.ILogger
}

func newUserDB(userID string, db *BadgerDB, logger arbor.ILogger) *UserDB {
	return &UserDB{
		userID: userID,
		db:     db,
		logger: logger,
	}
}

// UserID returns the owning user of this handle.
func (u *UserDB) UserID() string {
	return u.userID
}

func (u *UserDB) close() error {
	return u.db.Close()
}
