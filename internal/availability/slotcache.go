package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/queueme/scheduling-core/internal/domain"
)

// slotCacheTTL bounds how stale a memoized day's slot list may be; booking
// writes do not invalidate the cache, so it is kept short relative to the
// minute-granularity the engine itself works in.
const slotCacheTTL = 30 * time.Second

func slotCacheKey(serviceID, specialistID string, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s:%s", serviceID, specialistID, date.Format("2006-01-02"))
}

func encodeSlots(slots []domain.Slot) (string, bool) {
	b, err := json.Marshal(slots)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func decodeSlots(raw string) ([]domain.Slot, bool) {
	var slots []domain.Slot
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, false
	}
	return slots, true
}
