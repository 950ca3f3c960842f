package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/randytsao24/brigade/internal/api"
	"github.com/randytsao24/brigade/internal/api/handlers"
	"github.com/randytsao24/brigade/internal/config"
	"github.com/randytsao24/brigade/internal/geocode"
	"github.com/randytsao24/brigade/internal/models"
	"github.com/randytsao24/brigade/internal/predict"
	"github.com/randytsao24/brigade/internal/store"
)

// ---------------------------------------------------------------------------
// Mock providers
// ---------------------------------------------------------------------------

type mockPredictor struct {
	result *models.PredictionResult
	err    error

	mu    sync.Mutex
	calls []models.PredictionRequest
}

func (m *mockPredictor) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockStatus struct {
	status     predict.Status
	categories map[string][]string
}

func (m mockStatus) Status() predict.Status { return m.status }

func (m mockStatus) Categories() map[string][]string { return m.categories }

func (m *mockPredictor) Calls() []models.PredictionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PredictionRequest(nil), m.calls...)
}

type mockRecorder struct {
	entries   []store.Entry
	recordErr error
	recentErr error

	mu        sync.Mutex
	recorded  []models.PredictionResult
	lastLimit int
}

func (m *mockRecorder) Record(ctx context.Context, req models.PredictionRequest, res models.PredictionResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return "", m.recordErr
	}
	m.recorded = append(m.recorded, res)
	return "3f1c9a52-6c3e-4d1b-9a57-0c1e2f3a4b5c", nil
}

func (m *mockRecorder) Recent(ctx context.Context, limit int) ([]store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testdataDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "../predict/testdata")
}

func bigBenResult() *models.PredictionResult {
	return &models.PredictionResult{
		Latitude:          51.5007042,
		Longitude:         -0.1245721,
		Station:           "Lambeth",
		StationBorough:    "Lambeth",
		StationLatitude:   51.4952,
		StationLongitude:  -0.1436,
		DistanceToStation: 1454.057197671088,
		Prediction:        420,
	}
}

func newTestServer(t *testing.T, predictor handlers.Predictor, recorder handlers.Recorder) *httptest.Server {
	t.Helper()

	cfg := &config.Config{GeocodeTimeout: 5 * time.Second}
	status := mockStatus{
		status: predict.Status{
			Ready: true, Stations: 3, Boroughs: 3, Trees: 2,
			Objective: "reg:squarederror", ModelVersion: "2.1.3",
		},
		categories: map[string][]string{
			"incidentGroup":    {"False Alarm", "Fire", "Special Service"},
			"propertyCategory": {"Dwelling", "Outdoor"},
		},
	}
	router := api.NewRouter(cfg, predictor, status, recorder, discardLogger())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// newPipelineServer wires the real prediction service over the fixture artifacts
func newPipelineServer(t *testing.T, g geocode.Geocoder) *httptest.Server {
	t.Helper()

	dir := testdataDir(t)
	artifacts, err := predict.LoadArtifacts(predict.Paths{
		Model:    filepath.Join(dir, "model-XGB.json"),
		Encoders: filepath.Join(dir, "encoders.json"),
		Stations: filepath.Join(dir, "stations.csv"),
	})
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}

	svc := predict.NewService(g, artifacts, discardLogger())
	cfg := &config.Config{GeocodeTimeout: 5 * time.Second}
	srv := httptest.NewServer(api.NewRouter(cfg, svc, svc, nil, discardLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, server *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func post(t *testing.T, server *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return m
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("status = %d, want %d", resp.StatusCode, want)
	}
}

func assertSuccess(t *testing.T, body map[string]any) {
	t.Helper()
	if body["success"] != true {
		t.Errorf("expected success=true, body: %v", body)
	}
}

func assertField(t *testing.T, body map[string]any, field string) {
	t.Helper()
	if _, ok := body[field]; !ok {
		t.Errorf("missing field %q in response: %v", field, body)
	}
}

const validBody = `{"address":"Big Ben, London","hourOfCall":10,"incidentGroup":"Fire","propertyCategory":"Dwelling"}`

// ---------------------------------------------------------------------------
// Health & root
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{result: bigBenResult()}, nil)

	resp := get(t, srv, "/health")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertField(t, body, "status")
	assertField(t, body, "uptime")
	assertField(t, body, "version")

	if body["status"] != "OK" {
		t.Errorf("status = %v, want OK", body["status"])
	}
	if body["stations"] != float64(3) || body["modelTrees"] != float64(2) {
		t.Errorf("stations/modelTrees = %v/%v, want 3/2", body["stations"], body["modelTrees"])
	}
	if body["boroughs"] != float64(3) {
		t.Errorf("boroughs = %v, want 3", body["boroughs"])
	}
	model, ok := body["model"].(map[string]any)
	if !ok || model["objective"] != "reg:squarederror" || model["version"] != "2.1.3" {
		t.Errorf("model = %v", body["model"])
	}
}

func TestHealthNotReady(t *testing.T) {
	cfg := &config.Config{GeocodeTimeout: time.Second}
	router := api.NewRouter(cfg, &mockPredictor{}, mockStatus{}, nil, discardLogger())
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp := get(t, srv, "/health")
	assertStatus(t, resp, http.StatusServiceUnavailable)

	body := decodeBody(t, resp)
	if body["status"] != "NOT_READY" {
		t.Errorf("status = %v, want NOT_READY", body["status"])
	}
}

func TestVerify(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{}, nil)

	resp := get(t, srv, "/verify")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if body["message"] != "API is up" {
		t.Errorf("message = %v, want %q", body["message"], "API is up")
	}
}

func TestAPIRoot(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{}, nil)

	for _, path := range []string{"/", "/api"} {
		resp := get(t, srv, path)
		assertStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		assertField(t, body, "endpoints")

		categories, ok := body["categories"].(map[string]any)
		if !ok {
			t.Fatalf("categories = %v", body["categories"])
		}
		if groups, _ := categories["incidentGroup"].([]any); len(groups) != 3 {
			t.Errorf("incidentGroup = %v", categories["incidentGroup"])
		}
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{}, nil)

	resp := get(t, srv, "/nowhere")
	assertStatus(t, resp, http.StatusNotFound)

	body := decodeBody(t, resp)
	assertField(t, body, "error")
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{}, nil)

	resp := get(t, srv, "/verify")
	resp.Body.Close()
	if resp.Header.Get(api.RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/verify", nil)
	req.Header.Set(api.RequestIDHeader, "incident-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /verify: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(api.RequestIDHeader); got != "incident-42" {
		t.Errorf("request id = %q, want incident-42", got)
	}
}

// ---------------------------------------------------------------------------
// Prediction endpoint
// ---------------------------------------------------------------------------

func TestPredict(t *testing.T) {
	predictor := &mockPredictor{result: bigBenResult()}
	srv := newTestServer(t, predictor, nil)

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	for _, field := range []string{
		"latitude", "longitude", "station", "stationBorough",
		"stationLatitude", "stationLongitude", "distanceToStation", "prediction",
	} {
		assertField(t, body, field)
	}
	if _, ok := body["id"]; ok {
		t.Error("id should be omitted when recording is disabled")
	}
	if body["station"] != "Lambeth" || body["prediction"] != float64(420) {
		t.Errorf("unexpected body: %v", body)
	}

	calls := predictor.Calls()
	if len(calls) != 1 {
		t.Fatalf("predictor called %d times, want 1", len(calls))
	}
	want := models.PredictionRequest{Address: "Big Ben, London", HourOfCall: 10, IncidentGroup: "Fire", PropertyCategory: "Dwelling"}
	if calls[0] != want {
		t.Errorf("request = %+v, want %+v", calls[0], want)
	}
}

func TestPredictAcceptsPascalCaseFieldNames(t *testing.T) {
	predictor := &mockPredictor{result: bigBenResult()}
	srv := newTestServer(t, predictor, nil)

	resp := post(t, srv, "/predict",
		`{"address":"Big Ben, London","HourOfCall":0,"IncidentGroup":"Fire","PropertyCategory":"Dwelling"}`)
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	calls := predictor.Calls()
	if len(calls) != 1 {
		t.Fatalf("predictor called %d times, want 1", len(calls))
	}
	got := calls[0]
	if got.HourOfCall != 0 || got.IncidentGroup != "Fire" || got.PropertyCategory != "Dwelling" {
		t.Errorf("request = %+v", got)
	}
}

func TestPredictValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"address":`},
		{"empty address", `{"address":"  ","hourOfCall":10,"incidentGroup":"Fire","propertyCategory":"Dwelling"}`},
		{"missing hour", `{"address":"Big Ben","incidentGroup":"Fire","propertyCategory":"Dwelling"}`},
		{"negative hour", `{"address":"Big Ben","hourOfCall":-1,"incidentGroup":"Fire","propertyCategory":"Dwelling"}`},
		{"hour 24", `{"address":"Big Ben","hourOfCall":24,"incidentGroup":"Fire","propertyCategory":"Dwelling"}`},
		{"fractional hour", `{"address":"Big Ben","hourOfCall":1.5,"incidentGroup":"Fire","propertyCategory":"Dwelling"}`},
		{"missing group", `{"address":"Big Ben","hourOfCall":10,"propertyCategory":"Dwelling"}`},
		{"missing category", `{"address":"Big Ben","hourOfCall":10,"incidentGroup":"Fire"}`},
	}

	predictor := &mockPredictor{result: bigBenResult()}
	srv := newTestServer(t, predictor, nil)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv, "/predict", tc.body)
			assertStatus(t, resp, http.StatusBadRequest)

			body := decodeBody(t, resp)
			assertField(t, body, "error")
		})
	}

	if n := len(predictor.Calls()); n != 0 {
		t.Errorf("predictor called %d times for invalid requests", n)
	}
}

func TestPredictErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no match", &predict.StageError{Err: &geocode.GeocodeError{Address: "x", Err: geocode.ErrNoMatch}}, http.StatusUnprocessableEntity},
		{"geocoder down", &predict.StageError{Err: &geocode.GeocodeError{Address: "x", Err: geocode.ErrUnavailable}}, http.StatusBadGateway},
		{"empty address", &geocode.GeocodeError{Err: geocode.ErrEmptyAddress}, http.StatusBadRequest},
		{"empty roster", &predict.StageError{Stage: predict.StageGeocoded, Err: errors.New("station roster is empty")}, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &mockPredictor{err: tc.err}, nil)

			resp := post(t, srv, "/predict", validBody)
			assertStatus(t, resp, tc.status)

			body := decodeBody(t, resp)
			assertField(t, body, "error")
		})
	}
}

func TestPredictRecordsResult(t *testing.T) {
	recorder := &mockRecorder{}
	srv := newTestServer(t, &mockPredictor{result: bigBenResult()}, recorder)

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if body["id"] != "3f1c9a52-6c3e-4d1b-9a57-0c1e2f3a4b5c" {
		t.Errorf("id = %v", body["id"])
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.recorded) != 1 || recorder.recorded[0] != *bigBenResult() {
		t.Errorf("recorded = %+v", recorder.recorded)
	}
}

func TestPredictRecorderFailureStillServes(t *testing.T) {
	recorder := &mockRecorder{recordErr: errors.New("disk full")}
	srv := newTestServer(t, &mockPredictor{result: bigBenResult()}, recorder)

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertField(t, body, "prediction")
	if _, ok := body["id"]; ok {
		t.Error("id should be omitted when recording failed")
	}
}

func TestPredictEndToEnd(t *testing.T) {
	g := geocode.GeocoderFunc(func(ctx context.Context, address string) (models.Coordinates, error) {
		return models.Coordinates{Lat: 51.5007042, Lng: -0.1245721}, nil
	})
	srv := newPipelineServer(t, g)

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if body["station"] != "Lambeth" {
		t.Errorf("station = %v, want Lambeth", body["station"])
	}
	if p, _ := body["prediction"].(float64); p < 419.999 || p > 420.001 {
		t.Errorf("prediction = %v, want 420", body["prediction"])
	}

	resp = get(t, srv, "/health")
	assertStatus(t, resp, http.StatusOK)
	health := decodeBody(t, resp)
	if health["stations"] != float64(3) || health["modelTrees"] != float64(2) {
		t.Errorf("health = %v", health)
	}
}

func TestPredictEndToEndUnresolvedAddress(t *testing.T) {
	g := geocode.GeocoderFunc(func(ctx context.Context, address string) (models.Coordinates, error) {
		return models.Coordinates{}, &geocode.GeocodeError{Address: address, Err: geocode.ErrNoMatch}
	})
	srv := newPipelineServer(t, g)

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestPredictUpstreamBadCoordinates(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "not-a-number", "lon": "-0.12"}]`))
	}))
	defer upstream.Close()

	srv := newPipelineServer(t, geocode.NewNominatim(upstream.URL, "", 2*time.Second))

	resp := post(t, srv, "/predict", validBody)
	assertStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()
}

func TestRequestTimeoutCoversGeocoder(t *testing.T) {
	cfg := &config.Config{GeocodeTimeout: 10 * time.Second}
	if got := api.RequestTimeout(cfg); got != 10*time.Second+api.RequestSlack {
		t.Errorf("RequestTimeout = %v, want %v", got, 10*time.Second+api.RequestSlack)
	}
}

// ---------------------------------------------------------------------------
// Recorded predictions
// ---------------------------------------------------------------------------

func TestPredictionsDisabled(t *testing.T) {
	srv := newTestServer(t, &mockPredictor{}, nil)

	resp := get(t, srv, "/predictions")
	assertStatus(t, resp, http.StatusServiceUnavailable)

	body := decodeBody(t, resp)
	assertField(t, body, "error")
}

func TestPredictionsList(t *testing.T) {
	recorder := &mockRecorder{entries: []store.Entry{
		{ID: "b", Address: "Big Ben", Station: "Lambeth", Prediction: 420},
		{ID: "a", Address: "Tower Bridge", Station: "Shoreditch", Prediction: 390},
	}}
	srv := newTestServer(t, &mockPredictor{}, recorder)

	resp := get(t, srv, "/predictions?limit=1")
	assertStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	assertSuccess(t, body)
	assertField(t, body, "predictions")
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestPredictionsLimitClamped(t *testing.T) {
	tests := []struct {
		query string
		limit int
	}{
		{"", 20},
		{"?limit=0", 1},
		{"?limit=500", 100},
		{"?limit=abc", 20},
		{"?limit=7", 7},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := &mockRecorder{}
			srv := newTestServer(t, &mockPredictor{}, recorder)

			resp := get(t, srv, "/predictions"+tc.query)
			assertStatus(t, resp, http.StatusOK)
			resp.Body.Close()

			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			if recorder.lastLimit != tc.limit {
				t.Errorf("limit = %d, want %d", recorder.lastLimit, tc.limit)
			}
		})
	}
}

func TestPredictionsStoreError(t *testing.T) {
	recorder := &mockRecorder{recentErr: errors.New("connection reset")}
	srv := newTestServer(t, &mockPredictor{}, recorder)

	resp := get(t, srv, "/predictions")
	assertStatus(t, resp, http.StatusInternalServerError)
	resp.Body.Close()
}
