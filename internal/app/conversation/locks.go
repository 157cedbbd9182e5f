package conversation

import (
	"sync"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

// keyedMutex holds one mutex per conversation while anyone uses it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ConversationID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.ConversationID]*refMutex)}
}

func (k *keyedMutex) lock(id domain.ConversationID) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
