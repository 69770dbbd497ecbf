package service

import "sync"

const lockStripes = 64

// stripedLock serializes work per conversation without one mutex per id
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(conversationID uint64) func() {
	m := &l.stripes[conversationID%lockStripes]
	m.Lock()
	return m.Unlock
}
