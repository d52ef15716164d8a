package calendar

import (
	"sort"
	"time"

	"github.com/tandemhq/tandem/task"
)

// Aggregate merges the task collection and the per-source event collections
// into one ascending timeline. It is pure: callers pass current snapshots and
// recompute after any mutation. Tasks without a due date contribute nothing,
// as do events whose start cannot be resolved. The output order is fully
// deterministic: ascending by start; at equal start events sort before
// tasks; within the same type, by title.
func Aggregate(tasks []task.Task, eventsBySource map[string][]Event, loc *time.Location) []Item {
	if loc == nil {
		loc = time.Local
	}

	var items []Item
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		items = append(items, Item{
			ID:       t.ID,
			Title:    t.Name,
			Start:    due,
			End:      due,
			Type:     ItemTask,
			Priority: string(t.Priority),
			Status:   string(t.Status),
		})
	}

	// Iterate sources in sorted order so equal items from different sources
	// land in a reproducible sequence.
	sources := make([]string, 0, len(eventsBySource))
	for src := range eventsBySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		for _, ev := range eventsBySource[src] {
			start, ok := ev.Start.Instant(loc, false)
			if !ok {
				continue
			}
			end, ok := ev.End.Instant(loc, true)
			if !ok || end.Before(start) {
				end = start
			}
			source := ev.Source
			if source == "" {
				source = src
			}
			items = append(items, Item{
				ID:        ev.ID,
				Title:     ev.Summary,
				Start:     start,
				End:       end,
				Type:      ItemEvent,
				Location:  ev.Location,
				Attendees: ev.Attendees,
				Source:    source,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Type != b.Type {
			return a.Type == ItemEvent
		}
		return a.Title < b.Title
	})
	return items
}

// BucketByDay groups items by the calendar date of their start in loc.
// Keys use the YYYY-MM-DD form. An item belongs to exactly one bucket even
// when its range crosses midnight.
func BucketByDay(items []Item, loc *time.Location) map[string][]Item {
	if loc == nil {
		loc = time.Local
	}
	buckets := make(map[string][]Item)
	for _, it := range items {
		key := it.Start.In(loc).Format("2006-01-02")
		buckets[key] = append(buckets[key], it)
	}
	return buckets
}
