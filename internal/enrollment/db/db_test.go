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
	"ms-petevents/internal/enrollment/db"
	"ms-petevents/internal/models"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func insertEvent(t *testing.T, bunDB *bun.DB, capacity *int) models.Event {
	ev := models.Event{
		ID:            uuid.New().String(),
		OrganizerID:   "organizer",
		Title:         "Park walk",
		Description:   "d",
		Address:       "park",
		StartAt:       now.Add(24 * time.Hour),
		Capacity:      capacity,
		AllowComments: true,
		Visible:       true,
		Status:        models.EventStatusPending,
		CreatedAt:     now,
	}
	_, err := bunDB.NewInsert().Model(&ev).Exec(context.Background())
	require.NoError(t, err)
	return ev
}

func insertPet(t *testing.T, bunDB *bun.DB, name string) models.Pet {
	pet := models.Pet{ID: uuid.New().String(), OwnerID: "owner-a", Name: name, Species: models.SpeciesDog, CreatedAt: now}
	_, err := bunDB.NewInsert().Model(&pet).Exec(context.Background())
	require.NoError(t, err)
	return pet
}

func newEnrollment(eventID, petID string) models.Enrollment {
	return models.Enrollment{ID: uuid.New().String(), EventID: eventID, PetID: petID, OwnerID: "owner-a", CreatedAt: now}
}

func storedCount(t *testing.T, bunDB *bun.DB, eventID string) int {
	var ev models.Event
	require.NoError(t, bunDB.NewSelect().Model(&ev).Where("id = ?", eventID).Scan(context.Background()))
	return ev.EnrolledCount
}

func TestCreateEnrollmentIncrementsCount(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := insertEvent(t, bunDB, nil)
	maxPet := insertPet(t, bunDB, "Max")

	count, err := enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, storedCount(t, bunDB, ev.ID))

	exists, err := enrollDB.EnrollmentExists(ctx, ev.ID, maxPet.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateEnrollmentDuplicateLeavesCountUnchanged(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := insertEvent(t, bunDB, nil)
	maxPet := insertPet(t, bunDB, "Max")

	_, err := enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	require.NoError(t, err)

	_, err = enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	assert.ErrorIs(t, err, models.ErrDuplicateEnrollment)
	assert.Equal(t, 1, storedCount(t, bunDB, ev.ID))

	n, err := bunDB.NewSelect().Model((*models.Enrollment)(nil)).Where("event_id = ?", ev.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateEnrollmentRespectsCapacity(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	one := 1
	ev := insertEvent(t, bunDB, &one)
	maxPet := insertPet(t, bunDB, "Max")
	luna := insertPet(t, bunDB, "Luna")

	_, err := enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	require.NoError(t, err)

	_, err = enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, luna.ID))
	assert.ErrorIs(t, err, models.ErrEventFull)

	exists, err := enrollDB.EnrollmentExists(ctx, ev.ID, luna.ID)
	require.NoError(t, err)
	assert.False(t, exists, "the insert must roll back with the counter")
	assert.Equal(t, 1, storedCount(t, bunDB, ev.ID))
}

func TestCreateEnrollmentMissingEvent(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}

	maxPet := insertPet(t, bunDB, "Max")
	_, err := enrollDB.CreateEnrollment(context.Background(), newEnrollment(uuid.New().String(), maxPet.ID))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetEnrollment(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := insertEvent(t, bunDB, nil)
	maxPet := insertPet(t, bunDB, "Max")
	e := newEnrollment(ev.ID, maxPet.ID)
	_, err := enrollDB.CreateEnrollment(ctx, e)
	require.NoError(t, err)

	got, err := enrollDB.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.EventID)
	assert.Equal(t, maxPet.ID, got.PetID)

	_, err = enrollDB.GetEnrollment(ctx, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListEnrollmentsByEventLoadsPets(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := insertEvent(t, bunDB, nil)
	maxPet := insertPet(t, bunDB, "Max")
	_, err := enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	require.NoError(t, err)

	list, err := enrollDB.ListEnrollmentsByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Pet)
	assert.Equal(t, "Max", list[0].Pet.Name)
}

func TestReconcileCountRepairsDrift(t *testing.T) {
	bunDB := dbtest.New(t)
	enrollDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	ev := insertEvent(t, bunDB, nil)
	maxPet := insertPet(t, bunDB, "Max")
	luna := insertPet(t, bunDB, "Luna")
	_, err := enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, maxPet.ID))
	require.NoError(t, err)
	_, err = enrollDB.CreateEnrollment(ctx, newEnrollment(ev.ID, luna.ID))
	require.NoError(t, err)

	_, err = bunDB.NewUpdate().Model((*models.Event)(nil)).Set("enrolled_count = ?", 7).Where("id = ?", ev.ID).Exec(ctx)
	require.NoError(t, err)

	stored, actual, err := enrollDB.ReconcileCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored)
	assert.Equal(t, 2, actual)
	assert.Equal(t, 2, storedCount(t, bunDB, ev.ID))

	stored, actual, err = enrollDB.ReconcileCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 2, actual)

	_, _, err = enrollDB.ReconcileCount(ctx, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
