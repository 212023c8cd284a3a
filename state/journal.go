package state

import "github.com/kratoschain/kratos/core/types"

// journalEntry is a revertible change to the store, following the same
// snapshot/revert shape as the teacher's EVM-style state journal, trimmed
// to the two kinds of record this store owns.
type journalEntry interface {
	revert(s *Store)
}

type journal struct {
	entries   []journalEntry
	snapshots map[int]int
	nextID    int
}

func newJournal() *journal {
	return &journal{snapshots: make(map[int]int)}
}

func (j *journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.snapshots[id] = len(j.entries)
	return id
}

func (j *journal) revertToSnapshot(id int, s *Store) {
	idx, ok := j.snapshots[id]
	if !ok {
		return
	}
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:idx]
	for sid := range j.snapshots {
		if sid >= id {
			delete(j.snapshots, sid)
		}
	}
}

type accountChange struct {
	id      types.AccountID
	prev    types.Account
	existed bool
}

func (c accountChange) revert(s *Store) {
	if c.existed {
		s.accounts[c.id] = c.prev
	} else {
		delete(s.accounts, c.id)
	}
	s.readCache.Del(c.id[:])
}

type vcChange struct {
	id      types.AccountID
	prev    types.ValidatorCredits
	existed bool
}

func (c vcChange) revert(s *Store) {
	if c.existed {
		s.vc[c.id] = c.prev
	} else {
		delete(s.vc, c.id)
	}
}
