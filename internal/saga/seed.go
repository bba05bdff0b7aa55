package saga

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// seededRand derives a deterministic rand stream from creator identity, a
// slot timestamp and a purpose salt, so follow-up offsets and jitter come
// out identical across reruns of the same schedule.
func seededRand(creatorID string, at time.Time, salt string) *rand.Rand {
	h := xxhash.New()
	_, _ = h.WriteString(creatorID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatInt(at.UTC().Unix(), 10))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(salt)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
