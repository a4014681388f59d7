package bridge

import (
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idGenerator выдаёт идентификаторы вида {counter}-{random}-{timestamp}.
// Счётчик принадлежит сокету, а не процессу.
type idGenerator struct {
	mu      sync.Mutex
	counter uint64
	now     func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{now: time.Now}
}

func (g *idGenerator) next() string {
	g.mu.Lock()
	n := g.counter
	g.counter++
	g.mu.Unlock()

	random := uuid.New()

	return strconv.FormatUint(n, 10) + "-" +
		hex.EncodeToString(random[:6]) + "-" +
		strconv.FormatInt(g.now().UnixMilli(), 10)
}
