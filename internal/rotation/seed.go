package rotation

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// seededRand builds a rand source from creator identity plus a timestamp and
// salt. The same inputs always produce the same stream, which is what keeps
// day-of decisions idempotent across repeated runs.
func seededRand(creatorID string, at time.Time, salt string) *rand.Rand {
	h := xxhash.New()
	_, _ = h.WriteString(creatorID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatInt(at.UTC().Unix(), 10))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(salt)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
