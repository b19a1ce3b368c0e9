// internal/service/account_locks.go
package service

import (
	"sort"
	"sync"
)

// AccountLocks is a striped lock table serializing balance mutations per
// account inside one process. Row locks in the database cover the
// multi-instance case; this table keeps same-process callers from piling
// up on them.
type AccountLocks struct {
	stripes []sync.Mutex
}

// NewAccountLocks creates a table with n stripes.
func NewAccountLocks(n int) *AccountLocks {
	if n <= 0 {
		n = 256
	}
	return &AccountLocks{stripes: make([]sync.Mutex, n)}
}

func (l *AccountLocks) stripe(accountID int64) int {
	idx := accountID % int64(len(l.stripes))
	if idx < 0 {
		idx = -idx
	}
	return int(idx)
}

// Lock acquires the stripes of every account in ascending stripe order and
// returns the function releasing them.
func (l *AccountLocks) Lock(accountIDs ...int64) (unlock func()) {
	seen := make(map[int]struct{}, len(accountIDs))
	idxs := make([]int, 0, len(accountIDs))
	for _, id := range accountIDs {
		s := l.stripe(id)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idxs = append(idxs, s)
	}
	sort.Ints(idxs)

	for _, s := range idxs {
		l.stripes[s].Lock()
	}
	return func() {
		for i := len(idxs) - 1; i >= 0; i-- {
			l.stripes[idxs[i]].Unlock()
		}
	}
}
