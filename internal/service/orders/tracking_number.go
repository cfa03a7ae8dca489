package orders

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	trackingPrefix     = "TRK"
	trackingTimeLayout = "20060102150405"
	trackingSuffixMin  = 1000
	trackingSuffixSpan = 9000
)

// GenerateTrackingNumber собирает трек-номер: TRK + yyyyMMddHHmmss + четыре цифры из [1000, 9999].
// Уникальность не гарантируется.
func GenerateTrackingNumber(clock domain.Clock, rnd domain.RandomSource) string {
	suffix := trackingSuffixMin + rnd.Intn(trackingSuffixSpan)
	return fmt.Sprintf("%s%s%d", trackingPrefix, clock.Now().Format(trackingTimeLayout), suffix)
}

func (s *Service) newTrackingNumber() string {
	return GenerateTrackingNumber(s.clock, s.rnd)
}

// lockedRand делает *rand.Rand безопасным для конкурентных запросов.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
