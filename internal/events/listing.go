package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ms-petevents/internal/models"
)

type View string

const (
	ViewUpcoming View = "upcoming"
	ViewPast     View = "past"
	ViewOthers   View = "others"
	ViewMine     View = "mine"
	ViewEnrolled View = "enrolled"
)

type Bucket string

const (
	BucketAll      Bucket = ""
	BucketUpcoming Bucket = "upcoming"
	BucketPast     Bucket = "past"
)

const maxListLimit = 100

// ListFilter selects one of the listing views. Limit <= 0 means the view default.
type ListFilter struct {
	View   View
	Bucket Bucket
	Limit  int
}

// Listing holds the requested partitions of a view. A partition that was
// not requested is nil.
type Listing struct {
	Upcoming []models.Event `json:"upcoming,omitempty"`
	Past     []models.Event `json:"past,omitempty"`
}

// IsUpcoming reports whether e starts at or after now. The boundary instant counts as upcoming.
func IsUpcoming(e models.Event, now time.Time) bool {
	return !e.StartAt.Before(now)
}

// Partition splits events into upcoming (earliest first) and past (latest first).
// Every event lands in exactly one of the two slices.
func Partition(events []models.Event, now time.Time) (upcoming, past []models.Event) {
	upcoming = []models.Event{}
	past = []models.Event{}
	for _, e := range events {
		if IsUpcoming(e, now) {
			upcoming = append(upcoming, e)
		} else {
			past = append(past, e)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].StartAt.Before(upcoming[j].StartAt)
	})
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].StartAt.After(past[j].StartAt)
	})
	return upcoming, past
}

func ParseView(raw string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(raw))); v {
	case ViewUpcoming, ViewPast, ViewOthers, ViewMine, ViewEnrolled:
		return v, nil
	case "":
		return ViewUpcoming, nil
	default:
		return "", fmt.Errorf("%w: unknown view %q", ErrInvalidFilter, raw)
	}
}

func ParseBucket(raw string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(raw))); b {
	case BucketAll, BucketUpcoming, BucketPast:
		return b, nil
	default:
		return "", fmt.Errorf("%w: unknown bucket %q", ErrInvalidFilter, raw)
	}
}

func truncate(events []models.Event, limit int) []models.Event {
	if limit > 0 && len(events) > limit {
		return events[:limit]
	}
	return events
}
