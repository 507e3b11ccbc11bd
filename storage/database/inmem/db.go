package inmemdb

import (
	"sync"

	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/search"
	"github.com/quantumqp/portal/core/user"
)

// DB is a process-local store. One lock guards every table so posts can join their owner.
type DB struct {
	sync.RWMutex
	users    map[string]*user.User
	posts    map[string]*post.Post // post.User only carries the owner ID
	searches []search.Search
}

func Open() *DB {
	return &DB{
		users: make(map[string]*user.User),
		posts: make(map[string]*post.Post),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.users = make(map[string]*user.User)
	db.posts = make(map[string]*post.Post)
	db.searches = nil
}
