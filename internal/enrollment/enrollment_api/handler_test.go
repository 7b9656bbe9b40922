package enrollment_api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/database/dbtest"
	"ms-petevents/internal/enrollment"
	enrolldb "ms-petevents/internal/enrollment/db"
	enrollredis "ms-petevents/internal/enrollment/redis"
	eventdb "ms-petevents/internal/events/db"
	"ms-petevents/internal/kafka"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	petdb "ms-petevents/internal/pets/db"
	"ms-petevents/internal/qr"
	"ms-petevents/internal/sse"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	bun    *bun.DB
	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	bunDB := dbtest.New(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	log := logger.NewLoggerWithWriter(nil)
	svc := enrollment.NewEnrollmentService(
		&enrolldb.DB{Bun: bunDB},
		&petdb.DB{Bun: bunDB},
		&eventdb.DB{Bun: bunDB},
		enrollredis.NewRedis(client, time.Minute, log),
		kafka.NoopPublisher{},
		qr.NewQRGenerator("test-secret"),
		log,
	)
	svc.Now = func() time.Time { return now }
	counts := sse.NewEnrollmentCountEmitter()
	svc.Counts = counts

	h := NewHandler(svc, log)
	stream := NewSSEHandler(svc, counts, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithUserID(req.Context(), req.Header.Get("X-Test-User"))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/events/{eventId}/enroll", h.Enroll)
	r.Post("/api/events/{eventId}/reconcile", h.Reconcile)
	r.Get("/api/events/{eventId}/enrollments", h.Roster)
	r.Post("/api/events/{eventId}/passes/verify", h.VerifyPass)
	r.Get("/api/events/{eventId}/enrollments/stream", stream.HandleEnrollmentCounts)
	r.Get("/api/enrollments/{enrollmentId}/pass", h.Pass)

	return &testEnv{bun: bunDB, router: r}
}

func (e *testEnv) addPet(t *testing.T, owner, name string) models.Pet {
	pet := models.Pet{ID: uuid.New().String(), OwnerID: owner, Name: name, Species: models.SpeciesDog, CreatedAt: now}
	_, err := e.bun.NewInsert().Model(&pet).Exec(context.Background())
	require.NoError(t, err)
	return pet
}

func (e *testEnv) addEvent(t *testing.T, startAt time.Time) models.Event {
	ev := models.Event{
		ID:            uuid.New().String(),
		OrganizerID:   "organizer",
		Title:         "Park walk",
		Description:   "Morning walk",
		Address:       "Central park",
		StartAt:       startAt,
		AllowComments: true,
		Visible:       true,
		Status:        models.EventStatusPending,
		CreatedAt:     now,
	}
	_, err := e.bun.NewInsert().Model(&ev).Exec(context.Background())
	require.NoError(t, err)
	return ev
}

func (e *testEnv) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestEnrollStatusCodes(t *testing.T) {
	env := newEnv(t)
	env.addPet(t, "owner-a", "Max")
	ev := env.addEvent(t, now.Add(24*time.Hour))
	past := env.addEvent(t, now.Add(-24*time.Hour))
	path := "/api/events/" + ev.ID + "/enroll"

	rec := env.do(http.MethodPost, path, "owner-a", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var result enrollment.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, enrollment.StatusEnrolled, result.Status)
	assert.Equal(t, 1, result.Event.EnrolledCount)

	rec = env.do(http.MethodPost, path, "owner-a", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pet already enrolled", decode(t, rec).Message)

	rec = env.do(http.MethodPost, path, "owner-b", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"redirect":"/pets/create"}`, string(decode(t, rec).Data))

	rec = env.do(http.MethodPost, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, path, "owner-a", `{"pet_id":"`+uuid.New().String()+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/events/"+uuid.New().String()+"/enroll", "owner-a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/events/"+past.ID+"/enroll", "owner-a", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(enrollment.StatusEventClosed), decode(t, rec).Message)

	rec = env.do(http.MethodPost, path, "owner-a", `{"pet_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrganizerEndpoints(t *testing.T) {
	env := newEnv(t)
	env.addPet(t, "owner-a", "Max")
	ev := env.addEvent(t, now.Add(24*time.Hour))

	rec := env.do(http.MethodPost, "/api/events/"+ev.ID+"/enroll", "owner-a", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var result enrollment.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))

	rec = env.do(http.MethodGet, "/api/events/"+ev.ID+"/enrollments", "owner-a", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/events/"+ev.ID+"/enrollments", "organizer", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Max"`)

	rec = env.do(http.MethodPost, "/api/events/"+ev.ID+"/reconcile", "organizer", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"event_id":"`+ev.ID+`","stored":1,"actual":1,"repaired":false}`, string(decode(t, rec).Data))

	rec = env.do(http.MethodPost, "/api/events/"+ev.ID+"/reconcile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/enrollments/"+result.Enrollment.ID+"/pass", "owner-a", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(http.MethodGet, "/api/enrollments/"+result.Enrollment.ID+"/pass", "owner-b", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/events/"+ev.ID+"/passes/verify", "organizer", `{"token":"garbage"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodPost, "/api/events/"+ev.ID+"/passes/verify", "organizer", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentCountStream(t *testing.T) {
	env := newEnv(t)
	env.addPet(t, "owner-a", "Max")
	ev := env.addEvent(t, now.Add(24*time.Hour))

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/"+ev.ID+"/enrollments/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	frames := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				frames <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	next := func() models.EnrollmentCount {
		select {
		case raw := <-frames:
			var c models.EnrollmentCount
			require.NoError(t, json.Unmarshal([]byte(raw), &c))
			return c
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for SSE frame")
			return models.EnrollmentCount{}
		}
	}

	assert.Equal(t, models.EnrollmentCount{EventID: ev.ID, EnrolledCount: 0}, next())

	rec := env.do(http.MethodPost, "/api/events/"+ev.ID+"/enroll", "owner-a", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, models.EnrollmentCount{EventID: ev.ID, EnrolledCount: 1}, next())
}

func TestEnrollmentCountStreamUnknownEvent(t *testing.T) {
	env := newEnv(t)
	rec := env.do(http.MethodGet, "/api/events/"+uuid.New().String()+"/enrollments/stream", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
