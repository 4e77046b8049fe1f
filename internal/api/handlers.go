package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/alerts"
	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/storage"
)

const (
	defaultAlertLimit = 50
	maxBodyBytes      = 8 << 20
)

// Handlers contains all HTTP handlers
type Handlers struct {
	baseline  *baseline.Baseline
	alerts    *alerts.Log
	storage   storage.SampleStore
	threshold float64
	location  *time.Location
	logger    *zap.Logger
}

// Response helpers

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON encodes before writing the header so an unencodable payload
// turns into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Response{Success: true, Data: data}); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode response: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, baseline.ErrInvalidThreshold), errors.Is(err, baseline.ErrInvalidBucket):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrInvalidSample):
		return http.StatusUnprocessableEntity
	case errors.Is(err, alerts.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// BaselineInfo describes the current window.
type BaselineInfo struct {
	WindowSize int                 `json:"window_size"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
	Threshold  float64             `json:"default_threshold"`
	Window     []baseline.SlotInfo `json:"window"`
}

// GetBaseline returns the window bounds and its weeks
func (h *Handlers) GetBaseline(w http.ResponseWriter, r *http.Request) {
	window := h.baseline.Window()

	writeJSON(w, http.StatusOK, BaselineInfo{
		WindowSize: h.baseline.WindowSize(),
		Start:      window[0].Start,
		End:        window[len(window)-1].End,
		Threshold:  h.threshold,
		Window:     window,
	})
}

// GetBuckets returns the full bucket grid, or a single bucket when day and
// hour are given
func (h *Handlers) GetBuckets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dayStr, hourStr := q.Get("day"), q.Get("hour")

	if dayStr == "" && hourStr == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"days":    baseline.DaysPerWeek,
			"hours":   baseline.HoursPerDay,
			"buckets": h.baseline.Grid(),
		})
		return
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be an integer")
		return
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hour must be an integer")
		return
	}

	bucket, err := h.baseline.Bucket(day, hour)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"day":    day,
		"hour":   hour,
		"bucket": bucket,
	})
}

// CheckRequest is the body of a check call. Threshold defaults to the
// configured one.
type CheckRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// CheckResponse is the outcome of a check call. Boundary is null when the
// threshold is 0 or 1.
type CheckResponse struct {
	Day       int             `json:"day"`
	Hour      int             `json:"hour"`
	Bucket    baseline.Bucket `json:"bucket"`
	Threshold float64         `json:"threshold"`
	Boundary  *float64        `json:"boundary"`
	Score     float64         `json:"score"`
	Alerting  bool            `json:"alerting"`
	Alert     *alerts.Alert   `json:"alert,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}

	return &v
}

// Check evaluates a single observed value
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "timestamp is required")
		return
	}

	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ts := req.Timestamp.In(h.location)

	eval, err := h.baseline.Evaluate(ts, req.Value, threshold)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	resp := CheckResponse{
		Day:       eval.Day,
		Hour:      eval.Hour,
		Bucket:    eval.Bucket,
		Threshold: eval.Threshold,
		Boundary:  finite(eval.Boundary),
		Score:     eval.Score,
		Alerting:  eval.Alerting,
	}
	if eval.Alerting {
		resp.Alert = h.alerts.Fire(ts, req.Value, eval)
	}

	writeJSON(w, http.StatusOK, resp)
}

// SamplesRequest is the body of a samples call.
type SamplesRequest struct {
	Samples []baseline.Sample `json:"samples"`
}

// AddSamples feeds new history into the baseline and the sample store
func (h *Handlers) AddSamples(w http.ResponseWriter, r *http.Request) {
	var req SamplesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	samples := make([]baseline.Sample, len(req.Samples))
	for i, s := range req.Samples {
		samples[i] = baseline.Sample{Timestamp: s.Timestamp.In(h.location), Value: s.Value}
	}

	if h.storage != nil {
		if err := h.storage.Record(r.Context(), samples); err != nil {
			h.logger.Error("failed to record samples", zap.Error(err))
			writeError(w, errorStatus(err), fmt.Sprintf("failed to record samples: %v", err))
			return
		}
	}

	admitted := h.baseline.AddData(samples)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"received": len(samples),
		"admitted": admitted,
		"start":    h.baseline.Start(),
		"end":      h.baseline.End(),
	})
}

// GetSamples returns stored samples between the from and to query
// parameters (RFC 3339, inclusive). They default to the window bounds.
func (h *Handlers) GetSamples(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeError(w, http.StatusNotFound, "sample store not configured")
		return
	}

	q := r.URL.Query()

	from, err := timeParam(q.Get("from"), h.baseline.Start())
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, err := timeParam(q.Get("to"), h.baseline.End())
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	samples, err := h.storage.Range(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to read samples", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read samples: %v", err))
		return
	}
	if samples == nil {
		samples = []baseline.Sample{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"samples": samples,
		"count":   len(samples),
	})
}

func timeParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}

	return time.Parse(time.RFC3339Nano, value)
}

// ListAlerts returns recent alerts, newest first
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultAlertLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	list := h.alerts.List(alerts.Filter{
		Status:   alerts.Status(q.Get("status")),
		Severity: alerts.Severity(q.Get("severity")),
		Limit:    limit,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

// AlertSummary returns alert counts
func (h *Handlers) AlertSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerts.Summary())
}

// GetAlert returns a specific alert
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.alerts.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

type userRequest struct {
	User string `json:"user"`
}

// AcknowledgeAlert marks an alert as acknowledged
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, h.alerts.Acknowledge)
}

// ResolveAlert marks an alert as resolved
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, h.alerts.Resolve)
}

func (h *Handlers) updateAlert(w http.ResponseWriter, r *http.Request, update func(id, user string) (*alerts.Alert, error)) {
	var req userRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	alert, err := update(chi.URLParam(r, "id"), req.User)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, alert)
}
