package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-petevents/internal/database/dbtest"
	"ms-petevents/internal/events/db"
	"ms-petevents/internal/models"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newEvent(organizer, title string, startAt time.Time) models.Event {
	return models.Event{
		ID:            uuid.New().String(),
		OrganizerID:   organizer,
		Title:         title,
		Description:   "desc",
		Address:       "park",
		StartAt:       startAt,
		AllowComments: true,
		Visible:       true,
		Status:        models.EventStatusPending,
		CreatedAt:     now,
	}
}

func seed(t *testing.T, eventDB *db.DB, events ...models.Event) {
	for _, e := range events {
		require.NoError(t, eventDB.CreateEvent(context.Background(), e))
	}
}

func titles(events []models.Event) []string {
	out := []string{}
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

func TestListEventsUpcomingAndPast(t *testing.T) {
	eventDB := &db.DB{Bun: dbtest.New(t)}
	ctx := context.Background()

	hidden := newEvent("org", "hidden", now.Add(time.Hour))
	hidden.Visible = false
	seed(t, eventDB,
		newEvent("org", "Y", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		newEvent("org", "older", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
		newEvent("org", "boundary", now),
		newEvent("org", "later", now.Add(72*time.Hour)),
		newEvent("org", "sooner", now.Add(time.Hour)),
		hidden,
	)

	upcoming, err := eventDB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, Upcoming: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"boundary", "sooner", "later"}, titles(upcoming))

	past, err := eventDB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, Upcoming: false, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "older"}, titles(past))

	limited, err := eventDB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, Upcoming: true, Now: now, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"boundary"}, titles(limited))
}

func TestListEventsByOrganizer(t *testing.T) {
	eventDB := &db.DB{Bun: dbtest.New(t)}
	ctx := context.Background()

	hidden := newEvent("owner-a", "mine hidden", now.Add(2*time.Hour))
	hidden.Visible = false
	seed(t, eventDB,
		newEvent("owner-a", "mine", now.Add(time.Hour)),
		hidden,
		newEvent("owner-b", "theirs", now.Add(time.Hour)),
	)

	mine, err := eventDB.ListEvents(ctx, db.EventQuery{OrganizerID: "owner-a", Upcoming: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine", "mine hidden"}, titles(mine))

	others, err := eventDB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, ExcludeOrganizerID: "owner-a", Upcoming: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"theirs"}, titles(others))
}

func TestStartAtStoredAsUTCInstant(t *testing.T) {
	eventDB := &db.DB{Bun: dbtest.New(t)}
	ctx := context.Background()

	local := time.Date(2024, 6, 1, 3, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	ev := newEvent("org", "zoned", local)
	seed(t, eventDB, ev)

	stored, err := eventDB.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartAt.Equal(now))

	upcoming, err := eventDB.ListEvents(ctx, db.EventQuery{Upcoming: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoned"}, titles(upcoming))
}

func TestUpdateEventLeavesCounterAlone(t *testing.T) {
	bunDB := dbtest.New(t)
	eventDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := newEvent("org", "walk", now.Add(time.Hour))
	ev.EnrolledCount = 3
	seed(t, eventDB, ev)

	ev.Title = "long walk"
	ev.EnrolledCount = 99
	require.NoError(t, eventDB.UpdateEvent(ctx, ev))

	stored, err := eventDB.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "long walk", stored.Title)
	assert.Equal(t, 3, stored.EnrolledCount)

	missing := newEvent("org", "x", now)
	assert.ErrorIs(t, eventDB.UpdateEvent(ctx, missing), models.ErrNotFound)
}

func TestDeleteEventCascades(t *testing.T) {
	bunDB := dbtest.New(t)
	eventDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := newEvent("org", "walk", now.Add(time.Hour))
	seed(t, eventDB, ev)
	insertEnrollment(t, bunDB, ev.ID, "pet-1", "owner-a")
	_, err := bunDB.NewInsert().Model(&models.Review{ID: uuid.New().String(), EventID: ev.ID, AuthorID: "owner-a", AuthorName: "a", Rating: 5, Comment: "great", CreatedAt: now}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, eventDB.DeleteEvent(ctx, ev.ID))

	_, err = eventDB.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	n, err := bunDB.NewSelect().Model((*models.Enrollment)(nil)).Where("event_id = ?", ev.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = bunDB.NewSelect().Model((*models.Review)(nil)).Where("event_id = ?", ev.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, eventDB.DeleteEvent(ctx, ev.ID), models.ErrNotFound)
}

func TestListEnrolledEvents(t *testing.T) {
	bunDB := dbtest.New(t)
	eventDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	a := newEvent("org", "a", now.Add(time.Hour))
	b := newEvent("org", "b", now.Add(-time.Hour))
	c := newEvent("org", "c", now.Add(time.Hour))
	seed(t, eventDB, a, b, c)
	insertEnrollment(t, bunDB, a.ID, "pet-1", "owner-a")
	insertEnrollment(t, bunDB, a.ID, "pet-2", "owner-a")
	insertEnrollment(t, bunDB, b.ID, "pet-1", "owner-a")
	insertEnrollment(t, bunDB, c.ID, "pet-9", "owner-b")

	list, err := eventDB.ListEnrolledEvents(ctx, "owner-a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, titles(list))
}

func insertEnrollment(t *testing.T, bunDB *bun.DB, eventID, petID, ownerID string) {
	e := models.Enrollment{ID: uuid.New().String(), EventID: eventID, PetID: petID, OwnerID: ownerID, CreatedAt: now}
	_, err := bunDB.NewInsert().Model(&e).Exec(context.Background())
	require.NoError(t, err)
}
