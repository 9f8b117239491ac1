// Package inmemdb is a mutex-guarded, map-backed implementation of the
// repositories, used by tests and local development. A single lock spans all
// tables so the workflow engines' multi-record units stay atomic, matching
// the SQL backend's transaction semantics.
package inmemdb

import (
	"sync"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/chat"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
)

type DB struct {
	mu sync.RWMutex

	users        map[string]*user.User
	topics       map[string]*catalog.Topic
	questions    map[string]*catalog.Question
	submissions  map[string]*submission.Submission
	transactions map[string]*ledger.Transaction
	txnOrder     []string // insertion order; the ledger is append-only
	messages     []*chat.Message
}

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		topics:       make(map[string]*catalog.Topic),
		questions:    make(map[string]*catalog.Question),
		submissions:  make(map[string]*submission.Submission),
		transactions: make(map[string]*ledger.Transaction),
	}
}

// descending reports whether the first created_at ordering entry, if any,
// requests descending order. Repositories here only support created_at
// ordering, which is all the API exposes.
func descending(ordering []core.DBOrdering, dflt bool) bool {
	for _, ord := range ordering {
		if ord.Field == "created_at" {
			return !ord.Ascending
		}
	}
	return dflt
}
