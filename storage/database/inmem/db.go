package inmemdb

import (
	"sync"

	"github.com/coursepalette/coursepalette/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
)

// Open returns an empty in-memory database; data is lost with the process.
func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
	}
}
