package agenda

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ScheduledItem is a session placed on one or more conference days.
// StartTime and Duration are "HH:MM" conference-local wall-clock values.
type ScheduledItem struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Days      []string `json:"days" yaml:"days"`
	StartTime string   `json:"start_time" yaml:"start_time"`
	Duration  string   `json:"duration" yaml:"duration"`
}

// EventConflict is an overlap between two items on one day.
// OverlapStart and OverlapEnd carry wall-clock values in time.UTC; no
// timezone conversion is applied.
type EventConflict struct {
	First          ScheduledItem `json:"first"`
	Second         ScheduledItem `json:"second"`
	Day            string        `json:"day"`
	OverlapStart   time.Time     `json:"overlap_start"`
	OverlapEnd     time.Time     `json:"overlap_end"`
	OverlapMinutes int           `json:"overlap_minutes"`
}

// DayResolver maps a day designator to the calendar date it stands for.
type DayResolver func(day string) (time.Time, error)

// YearDays resolves designators against a reference year:
//
//	"2025-06-03"  ISO date
//	"06-03"       month-day in the reference year
//	"3"           day index, 1 being January 1 of the reference year
func YearDays(year int) DayResolver {
	return resolveDays(year, time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
}

// ConferenceDays is like YearDays but numbers day indexes from the first
// conference day instead of January 1.
func ConferenceDays(start time.Time) DayResolver {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return resolveDays(first.Year(), first)
}

func resolveDays(year int, dayOne time.Time) DayResolver {
	return func(day string) (time.Time, error) {
		day = strings.TrimSpace(day)
		if t, err := time.Parse("2006-01-02", day); err == nil {
			return t, nil
		}
		if t, err := time.Parse("01-02", day); err == nil {
			return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		if n, err := strconv.Atoi(day); err == nil && n >= 1 {
			return dayOne.AddDate(0, 0, n-1), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized day %q", day)
	}
}

// ParseClock converts "HH:MM" into minutes. Hours may not exceed maxHours.
func ParseClock(s string, maxHours int) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > maxHours {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hours*60 + mins, nil
}

// DetectConflicts reports every pair of items whose [start, end) intervals
// overlap on a shared day, resolving days against referenceYear. An item
// sharing several days with another yields one conflict per shared day.
func DetectConflicts(items []ScheduledItem, referenceYear int) []EventConflict {
	return DetectConflictsFunc(items, YearDays(referenceYear))
}

type placed struct {
	item       ScheduledItem
	day        string // designator as written, trimmed
	start, end int
}

// DetectConflictsFunc is DetectConflicts with a caller-supplied day resolver.
// Items with unparseable times and days the resolver rejects are ignored.
// Designators naming the same date ("1", "01-01") share a bucket; a conflict
// reports the first item's designator as its Day.
func DetectConflictsFunc(items []ScheduledItem, resolve DayResolver) []EventConflict {
	conflicts := []EventConflict{}
	if len(items) < 2 {
		return conflicts
	}

	buckets := make(map[string][]placed)
	dates := make(map[string]time.Time)
	for _, item := range items {
		start, err := ParseClock(item.StartTime, 23)
		if err != nil {
			continue
		}
		dur, err := ParseClock(item.Duration, 99)
		if err != nil {
			continue
		}
		seen := make(map[string]bool, len(item.Days))
		for _, day := range item.Days {
			day = strings.TrimSpace(day)
			date, err := resolve(day)
			if err != nil {
				continue
			}
			key := date.Format("2006-01-02")
			if seen[key] {
				continue
			}
			seen[key] = true
			dates[key] = date
			buckets[key] = append(buckets[key], placed{item: item, day: day, start: start, end: start + dur})
		}
	}

	days := make([]string, 0, len(buckets))
	for key := range buckets {
		days = append(days, key)
	}
	sort.Strings(days)

	for _, key := range days {
		bucket := buckets[key]
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].start != bucket[j].start {
				return bucket[i].start < bucket[j].start
			}
			return bucket[i].item.ID < bucket[j].item.ID
		})

		date := dates[key]
		for i := range bucket {
			for j := i + 1; j < len(bucket) && bucket[j].start < bucket[i].end; j++ {
				from := max(bucket[i].start, bucket[j].start)
				to := min(bucket[i].end, bucket[j].end)
				if to <= from {
					continue
				}
				conflicts = append(conflicts, EventConflict{
					First:          bucket[i].item,
					Second:         bucket[j].item,
					Day:            bucket[i].day,
					OverlapStart:   date.Add(time.Duration(from) * time.Minute),
					OverlapEnd:     date.Add(time.Duration(to) * time.Minute),
					OverlapMinutes: to - from,
				})
			}
		}
	}
	return conflicts
}
