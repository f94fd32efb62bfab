package submission

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// entryLocks serializes lifecycle operations on the same entry within this
// process. Different entries usually hash to different stripes.
type entryLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *entryLocks) lock(entryID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entryID))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
