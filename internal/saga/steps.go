package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/rotation"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Follow-up placement bounds: the "still-engaged" window after a revenue
// send, in minutes.
const (
	followupMinGap = 15
	followupMaxGap = 45
	// Revenue items priced under this never get a follow-up.
	followupPriceFloor = 15.0
)

// Minimum spacing between consecutive revenue items within a day.
const minRevenueSpacing = 30 * time.Minute

/*
stepRotationUpdate refreshes the creator's rotation pattern and restamps the
style token on every revenue item by its in-day slot. The tracker advance
goes through the idempotency guard (keyed creator + calendar day, so retried
runs on the same day reuse the first advance) and the circuit breaker
guarding the state store. The undo restores the pre-step rotation snapshot.
*/
func (c *Coordinator) stepRotationUpdate(ctx context.Context, run *Run) (stepOutcome, error) {
	// Snapshot current persisted state for compensation.
	snapAny, err := c.breaker.Execute(func() (any, error) {
		s, err := c.tracker.Load(ctx, run.CreatorID)
		if errors.Is(err, apperr.ErrNotFound) {
			return (*types.RotationState)(nil), nil
		}
		return s, err
	})
	if err != nil {
		return stepOutcome{}, err
	}
	snapshot, _ := snapAny.(*types.RotationState)

	params := map[string]any{
		"creator_id": run.CreatorID,
		"date":       run.Now.UTC().Format("2006-01-02"),
	}
	raw, err := c.guard.ExecuteOnce(ctx, "rotation_advance", params, func(ctx context.Context) (any, error) {
		return c.breaker.Execute(func() (any, error) {
			return c.tracker.Advance(ctx, run.CreatorID, run.Now)
		})
	})
	if err != nil {
		return stepOutcome{}, err
	}
	var state types.RotationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return stepOutcome{}, fmt.Errorf("decode advanced rotation state: %w", err)
	}

	items := copyItems(run.Items)
	slot := map[string]int{}
	for _, idx := range chronological(items) {
		it := &items[idx]
		if it.Category != types.CategoryRevenue || it.IsFollowup {
			continue
		}
		day := it.SendAt.Format("2006-01-02")
		style, err := rotation.StyleForSlot(&state, slot[day])
		if err != nil {
			return stepOutcome{}, err
		}
		it.Style = style
		slot[day]++
	}

	undo := func(ctx context.Context) error {
		if snapshot == nil {
			return nil
		}
		return c.tracker.Restore(ctx, snapshot)
	}
	return stepOutcome{items: items, rotation: &state, undo: undo}, nil
}

/*
stepScheduleValidation checks the draft's structure and repairs what it can:
revenue items missing caption or price are a hard ValidationError; two
adjacent same-style revenue items in a day get the later one's style
reassigned; consecutive revenue items closer than the minimum spacing get
the later one pushed out. Output items come back in chronological order.
*/
func (c *Coordinator) stepScheduleValidation(ctx context.Context, run *Run) (stepOutcome, error) {
	items := copyItems(run.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SendAt.Before(items[j].SendAt) })

	for i := range items {
		it := items[i]
		if it.Category == types.CategoryRevenue && !it.IsFollowup {
			if it.CaptionID == "" {
				return stepOutcome{}, &apperr.ValidationError{Field: "caption_id", Reason: fmt.Sprintf("revenue item %s has no caption", it.ID)}
			}
			if it.Price <= 0 {
				return stepOutcome{}, &apperr.ValidationError{Field: "price", Reason: fmt.Sprintf("revenue item %s has no price", it.ID)}
			}
		}
	}

	byDay := groupRevenueByDay(items)
	for _, dayIdx := range byDay {
		// Adjacent same-style repair: the later item takes the next pattern
		// token that differs from both neighbors.
		for k := 1; k < len(dayIdx); k++ {
			cur := &items[dayIdx[k]]
			prev := items[dayIdx[k-1]]
			if cur.Style != prev.Style {
				continue
			}
			var next string
			if k+1 < len(dayIdx) {
				next = items[dayIdx[k+1]].Style
			}
			repaired, ok := alternateStyle(run.Rotation, cur.Style, next)
			if !ok {
				return stepOutcome{}, &apperr.ValidationError{Field: "style", Reason: "cannot repair adjacent same-style revenue items"}
			}
			cur.Style = repaired
		}
		// Minimum spacing: push the later of any too-close pair.
		for k := 1; k < len(dayIdx); k++ {
			cur := &items[dayIdx[k]]
			prev := items[dayIdx[k-1]]
			if gap := cur.SendAt.Sub(prev.SendAt); gap < minRevenueSpacing {
				cur.SendAt = prev.SendAt.Add(minRevenueSpacing)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].SendAt.Before(items[j].SendAt) })
	return stepOutcome{items: items}, nil
}

/*
stepFollowupPlacement plants follow-ups behind eligible revenue items. The
offset is drawn from a bounded triangular distribution centered mid-window,
seeded per creator+slot so reruns place identically. Placement stays on the
parent's calendar day unless cross-day is allowed; a clamped placement that
would land inside the minimum gap is dropped rather than bent.
*/
func (c *Coordinator) stepFollowupPlacement(ctx context.Context, run *Run) (stepOutcome, error) {
	if run.Volume.FollowupMultiplier <= 0 {
		return stepOutcome{items: run.Items}, nil
	}
	items := copyItems(run.Items)
	var placed []types.ScheduleItem
	for _, it := range items {
		if it.Category != types.CategoryRevenue || it.IsFollowup || it.Price < followupPriceFloor {
			continue
		}
		r := seededRand(run.CreatorID, it.SendAt, "followup")
		if r.Float64() >= run.Volume.FollowupMultiplier {
			continue
		}
		offset := time.Duration(followupMinGap+r.Intn(16)+r.Intn(16)) * time.Minute

		sendAt := it.SendAt.Add(offset)
		if !sameDay(sendAt, it.SendAt) && !run.AllowNextDay {
			sendAt = endOfDay(it.SendAt)
			if sendAt.Sub(it.SendAt) < followupMinGap*time.Minute {
				continue
			}
		}
		parentID := it.ID
		placed = append(placed, types.ScheduleItem{
			ID:         uuid.New(),
			CreatorID:  it.CreatorID,
			Category:   types.CategoryRevenue,
			Style:      it.Style,
			SendAt:     sendAt,
			IsFollowup: true,
			ParentID:   &parentID,
		})
	}
	items = append(items, placed...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SendAt.Before(items[j].SendAt) })
	return stepOutcome{items: items}, nil
}

// Minute values that read as scheduled-by-a-machine.
var roundMinutes = map[int]bool{0: true, 15: true, 30: true, 45: true}

/*
stepTimingJitter perturbs every send minute so nothing lands on a
suspiciously round value. Parents move first; each follow-up is then
re-derived from its jittered parent with the placed gap clamped back into
the follow-up window, so jitter can never squeeze a gap under the minimum
or stretch it past the maximum. The jitter is seeded per creator+slot.
*/
func (c *Coordinator) stepTimingJitter(ctx context.Context, run *Run) (stepOutcome, error) {
	items := copyItems(run.Items)

	hasFollowup := map[uuid.UUID]bool{}
	for _, it := range items {
		if it.IsFollowup && it.ParentID != nil {
			hasFollowup[*it.ParentID] = true
		}
	}

	original := map[uuid.UUID]time.Time{}
	jittered := map[uuid.UUID]time.Time{}
	for i := range items {
		it := &items[i]
		if it.IsFollowup {
			continue
		}
		var limit time.Time
		if hasFollowup[it.ID] && !run.AllowNextDay {
			// Keep a full minimum-gap window on the parent's day.
			limit = endOfDay(it.SendAt).Add(-followupMinGap * time.Minute)
		}
		original[it.ID] = it.SendAt
		it.SendAt = jitterTime(run.CreatorID, it.SendAt, i, limit)
		jittered[it.ID] = it.SendAt
	}

	for i := range items {
		it := &items[i]
		if !it.IsFollowup {
			continue
		}
		if it.ParentID == nil {
			it.SendAt = jitterTime(run.CreatorID, it.SendAt, i, time.Time{})
			continue
		}
		parentAt, ok := jittered[*it.ParentID]
		if !ok {
			it.SendAt = jitterTime(run.CreatorID, it.SendAt, i, time.Time{})
			continue
		}
		gap := it.SendAt.Sub(original[*it.ParentID])
		it.SendAt = jitterFollowup(run.CreatorID, parentAt, gap, i, run.AllowNextDay)
	}

	sort.SliceStable(items, func(a, b int) bool { return items[a].SendAt.Before(items[b].SendAt) })
	return stepOutcome{items: items}, nil
}

func jitterTime(creatorID string, base time.Time, slot int, notAfter time.Time) time.Time {
	r := seededRand(creatorID, base, fmt.Sprintf("jitter-%d", slot))
	for attempt := 0; attempt < 6; attempt++ {
		delta := time.Duration(1+r.Intn(7)) * time.Minute
		if r.Intn(2) == 0 {
			delta = -delta
		}
		cand := base.Add(delta)
		if !roundMinutes[cand.Minute()] && sameDay(cand, base) && fitsCap(cand, notAfter) {
			return cand
		}
	}
	// A round base plus 7 is never round and never crosses midnight. Bases
	// capped for a follow-up window sit at 23:44 or earlier, so the latest
	// round one is 23:30 and +7 stays under the cap.
	if roundMinutes[base.Minute()] {
		return base.Add(7 * time.Minute)
	}
	return base
}

/*
jitterFollowup re-derives a follow-up's send time from its jittered parent.
Candidates perturb the placed gap and anything escaping the window is
clamped back before the round-minute check, so the gap invariant survives
jitter. The fallback of parent plus the minimum gap always qualifies: the
parent minute is never round after its own jitter, the round set is closed
under +-15, and the parent was capped to leave the window room on its day.
*/
func jitterFollowup(creatorID string, parent time.Time, gap time.Duration, slot int, allowNextDay bool) time.Time {
	r := seededRand(creatorID, parent, fmt.Sprintf("jitter-%d", slot))
	for attempt := 0; attempt < 6; attempt++ {
		delta := time.Duration(1+r.Intn(7)) * time.Minute
		if r.Intn(2) == 0 {
			delta = -delta
		}
		cand := parent.Add(clampGap(gap + delta))
		if !roundMinutes[cand.Minute()] && (allowNextDay || sameDay(cand, parent)) {
			return cand
		}
	}
	return parent.Add(followupMinGap * time.Minute)
}

func clampGap(g time.Duration) time.Duration {
	if g < followupMinGap*time.Minute {
		return followupMinGap * time.Minute
	}
	if g > followupMaxGap*time.Minute {
		return followupMaxGap * time.Minute
	}
	return g
}

func fitsCap(t, notAfter time.Time) bool {
	return notAfter.IsZero() || !t.After(notAfter)
}

// chronological returns item indices ordered by send time.
func chronological(items []types.ScheduleItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return items[idx[a]].SendAt.Before(items[idx[b]].SendAt) })
	return idx
}

// groupRevenueByDay returns, per day, the indices of top-level revenue items
// in chronological order.
func groupRevenueByDay(items []types.ScheduleItem) map[string][]int {
	out := map[string][]int{}
	for _, i := range chronological(items) {
		it := items[i]
		if it.Category != types.CategoryRevenue || it.IsFollowup {
			continue
		}
		day := it.SendAt.Format("2006-01-02")
		out[day] = append(out[day], i)
	}
	return out
}

// alternateStyle picks a pattern token different from both given neighbors.
func alternateStyle(state *types.RotationState, avoidA, avoidB string) (string, bool) {
	if state == nil {
		return "", false
	}
	for _, s := range state.Pattern {
		if s != avoidA && s != avoidB {
			return s, true
		}
	}
	return "", false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}
