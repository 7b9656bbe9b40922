package enrollment_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/enrollment"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/sse"
)

const keepAliveInterval = 25 * time.Second

// SSEHandler streams enrolled-count changes of an event.
type SSEHandler struct {
	EnrollmentService *enrollment.EnrollmentService
	Counts            *sse.EnrollmentCountEmitter
	Logger            *logger.Logger
}

func NewSSEHandler(enrollmentService *enrollment.EnrollmentService, counts *sse.EnrollmentCountEmitter, log *logger.Logger) *SSEHandler {
	return &SSEHandler{EnrollmentService: enrollmentService, Counts: counts, Logger: log}
}

// HandleEnrollmentCounts serves GET /api/events/{eventId}/enrollments/stream.
// The first frame carries the stored count, later frames every change.
func (h *SSEHandler) HandleEnrollmentCounts(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	current, err := h.EnrollmentService.CurrentCount(r.Context(), eventID)
	if err != nil {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	updates := h.Counts.Subscribe(ctx, eventID)

	if err := writeFrame(w, "count", current); err != nil {
		return
	}
	flusher.Flush()
	h.Logger.Debug("SSE", fmt.Sprintf("Client subscribed to enrollment counts of event %s", eventID))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFrame(w, "count", update); err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to write count for event %s: %v", eventID, err))
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client left enrollment counts of event %s", eventID))
			return
		}
	}
}

func writeFrame(w http.ResponseWriter, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
