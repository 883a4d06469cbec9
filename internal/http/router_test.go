package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/config"
	"github.com/reliefroute/backend/internal/db"
	"github.com/reliefroute/backend/internal/events"
	"github.com/reliefroute/backend/internal/lock"
	"github.com/reliefroute/backend/internal/models"
	"github.com/reliefroute/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *db.MemoryStore) {
	t.Helper()
	logger := zerolog.Nop()
	store := db.NewMemoryStore()
	bus := events.NewLocalBus()
	weights := service.NewWeightStore(store, service.WeightStoreConfig{}, logger)
	reliability := service.NewReliabilityTracker(store, logger)
	recomputer := &service.Recomputer{Weights: weights, Reliability: reliability, Logger: logger}
	require.NoError(t, recomputer.Subscribe(bus))

	app := App{
		Store: store,
		Processing: &service.ProcessingService{
			Store:       store,
			Classifier:  &ai.Resolver{Logger: logger},
			Weights:     weights,
			Reliability: reliability,
			Locker:      lock.NewLocalLocker(),
			Bus:         bus,
			Logger:      logger,
		},
		Weights:    weights,
		Recomputer: recomputer,
		Anomalies:  &service.AnomalyScanner{Repo: store, Logger: logger},
	}
	cfg := config.Config{AdminKey: "secret", CORSAllowed: "*", RequestTimeout: 5 * time.Second}
	return Router(cfg, app, logger), store
}

func do(t *testing.T, r http.Handler, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", "secret")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/responders", map[string]any{
		"id":           "med-1",
		"name":         "Harbor Medics",
		"capabilities": []string{"first aid", "ambulance"},
		"lat":          41.01,
		"lon":          28.97,
	}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/requests", map[string]any{
		"client_id": "sms-1",
		"text":      "Medical emergency: my father is unconscious, needs a doctor",
		"location":  "41.02, 28.98",
		"contact":   "+90 555 111 2233",
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Request](t, w)
	require.NotNil(t, created.Classification)
	require.NotNil(t, created.Location.Coords)
	assert.Equal(t, models.StatusNew, created.Status)

	w = do(t, r, http.MethodPost, "/api/requests", map[string]any{"client_id": "sms-1", "text": "again"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[models.Request](t, w).ID)

	w = do(t, r, http.MethodPost, "/api/requests/"+created.ID+"/assign", nil, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.AssignmentResult](t, w)
	assert.Equal(t, "med-1", res.Selection.ResponderID)
	assert.Equal(t, models.StatusAssigned, res.Request.Status)

	w = do(t, r, http.MethodPost, "/api/requests/"+created.ID+"/assign", nil, false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPatch, "/api/requests/"+created.ID+"/status", map[string]string{"status": "in-progress"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodPatch, "/api/requests/"+created.ID+"/status", map[string]string{"status": "completed"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[models.Request](t, w).Status)

	w = do(t, r, http.MethodGet, "/api/requests?status=completed", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Items []models.Request `json:"items"`
	}](t, w)
	require.Len(t, list.Items, 1)
}

func TestCreateRequestValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/requests", map[string]any{"contact": "x"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]map[string]any](t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["error"]["code"])

	w = do(t, r, http.MethodPost, "/api/requests", map[string]any{"transcript": "water needed", "lat": 123.0, "lon": 0.0}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/requests", map[string]any{"transcript": "water needed"}, false)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUnknownRequestIsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/requests/nope", nil, false).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/requests/nope/assign", nil, false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/requests?status=lost", nil, false).Code)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	r, _ := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodPost, "/api/process", nil, false).Code)

	w := do(t, r, http.MethodGet, "/api/weights", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	weights := decode[models.WeightVector](t, w)
	assert.Equal(t, 20.0, weights.Service)
	assert.Equal(t, -1.5, weights.Load)

	w = do(t, r, http.MethodPost, "/api/weights/recompute", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["updated"])

	w = do(t, r, http.MethodPost, "/api/reliability/recompute", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/anomalies?limit=50", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/anomalies?limit=-1", nil, true).Code)
}

func TestProcessEndpointRecordsRun(t *testing.T) {
	r, _ := newTestRouter(t)
	do(t, r, http.MethodPost, "/api/responders", map[string]any{"name": "Flood Team", "capabilities": []string{"rescue", "food"}}, false)
	do(t, r, http.MethodPost, "/api/requests", map[string]any{"text": "Flood water rising, family stuck on roof"}, false)
	do(t, r, http.MethodPost, "/api/requests", map[string]any{"text": "need food and water for 5 people"}, false)

	w := do(t, r, http.MethodPost, "/api/process", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[service.RunSummary](t, w)
	assert.Equal(t, 2, summary.Counts["assigned"])

	w = do(t, r, http.MethodGet, "/api/runs/latest", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[models.Run](t, w)
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, service.RunStatusCompleted, run.Status)
}

func TestClassifyAndHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/classify", map[string]string{"text": "Fire in the building, smoke everywhere"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	c := decode[models.Classification](t, w)
	assert.Equal(t, "fire", c.IncidentType)
	assert.Equal(t, ai.SourceFallback, c.Source)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", nil, false).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/metrics", nil, false).Code)
}
