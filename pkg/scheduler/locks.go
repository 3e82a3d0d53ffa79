package scheduler

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// lockTable serialises work per execution id while unrelated executions proceed in parallel.
type lockTable struct {
	shards [lockShards]sync.Mutex
}

func (l *lockTable) lock(executionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(executionID))

	m := &l.shards[h.Sum32()%lockShards]
	m.Lock()

	return m.Unlock
}
