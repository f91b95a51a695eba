package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/opencaretools/abctrack/internal/adapters/db/gormstore"
	"github.com/opencaretools/abctrack/internal/application"
	"github.com/opencaretools/abctrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := gormstore.OpenSQLite(filepath.Join(t.TempDir(), "abctrack.db"))
	require.NoError(t, err)
	require.NoError(t, gormstore.RunMigrations(context.Background(), db, gormstore.DriverSQLite))
	service := application.NewTrackerService(gormstore.New(db))
	server := httptest.NewServer(NewRouter(service, log.New(io.Discard, "", 0)))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeInto(t *testing.T, raw []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func createChild(t *testing.T, server *httptest.Server, name string) domain.Child {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/children", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var child domain.Child
	decodeInto(t, raw, &child)
	return child
}

func createItem(t *testing.T, server *httptest.Server, kind, label string) domain.CatalogItem {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/catalogs/"+kind, map[string]any{"label": label})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var item domain.CatalogItem
	decodeInto(t, raw, &item)
	return item
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)
	resp, raw := doJSON(t, http.MethodGet, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestCatalogEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/catalogs/verbs", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	decodeInto(t, raw, &body)
	assert.Contains(t, body["error"], "verbs")

	createItem(t, server, "behaviors", "Hitting")
	createItem(t, server, "behaviors", "Biting")
	createItem(t, server, "antecedents", "Transition")

	resp, raw = doJSON(t, http.MethodGet, server.URL+"/api/catalogs/behaviors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []domain.CatalogItem
	decodeInto(t, raw, &items)
	require.Len(t, items, 2)
	assert.Equal(t, "Biting", items[0].Label)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/catalogs/behaviors", map[string]any{"label": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodDelete, server.URL+"/api/catalogs/behaviors/"+items[0].ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(raw))
}

func TestChildrenEndpoints(t *testing.T) {
	server := newTestServer(t)

	createChild(t, server, "Zoe")
	createChild(t, server, "Ari")

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/children", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var children []domain.Child
	decodeInto(t, raw, &children)
	require.Len(t, children, 2)
	assert.Equal(t, "Ari", children[0].Name)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/children", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteChildConflict(t *testing.T) {
	server := newTestServer(t)
	child := createChild(t, server, "Ari")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/incidents", map[string]any{
		"childId": child.ID, "timestamp": "2026-03-14T15:09:00Z", "intensity": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/children/"+child.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIncidentLifecycle(t *testing.T) {
	server := newTestServer(t)
	child := createChild(t, server, "Ari")
	b1 := createItem(t, server, "behaviors", "Hitting")
	b2 := createItem(t, server, "behaviors", "Biting")
	loc := createItem(t, server, "locations", "Kitchen")

	resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/incidents", map[string]any{
		"childId":     child.ID,
		"timestamp":   "2026-03-14T15:09:00Z",
		"intensity":   4,
		"behaviorIds": []string{b1.ID, b2.ID},
		"locationId":  loc.ID,
		"tags":        []string{"morning"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created domain.ExpandedIncident
	decodeInto(t, raw, &created)
	assert.Equal(t, child.ID, created.Child.ID)
	require.Len(t, created.Behaviors, 2)
	assert.Equal(t, []string{b1.ID, b2.ID}, created.BehaviorIDs)
	require.NotNil(t, created.Location)
	assert.Equal(t, "Kitchen", created.Location.Label)
	assert.Equal(t, "unknown", string(created.FunctionHypothesis))

	resp, raw = doJSON(t, http.MethodGet, server.URL+"/api/incidents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched domain.ExpandedIncident
	decodeInto(t, raw, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	resp, raw = doJSON(t, http.MethodPatch, server.URL+"/api/incidents/"+created.ID, map[string]any{
		"intensity":   5,
		"notes":       "escalated quickly",
		"behaviorIds": []string{b2.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var updated domain.ExpandedIncident
	decodeInto(t, raw, &updated)
	assert.Equal(t, 5, updated.Intensity)
	assert.Equal(t, "escalated quickly", updated.Notes)
	assert.Equal(t, []string{b2.ID}, updated.BehaviorIDs)
	// patch leaves unmentioned fields alone
	assert.Equal(t, []string{"morning"}, updated.Tags)
	require.NotNil(t, updated.Location)

	resp, raw = doJSON(t, http.MethodDelete, server.URL+"/api/incidents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(raw))

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/incidents/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIncidentSettingEventsPatch(t *testing.T) {
	server := newTestServer(t)
	child := createChild(t, server, "Ari")

	resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/incidents", map[string]any{
		"childId":       child.ID,
		"timestamp":     "2026-03-14T15:09:00Z",
		"intensity":     2,
		"settingEvents": map[string]any{"sleepQuality": "poor", "illness": true},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created domain.ExpandedIncident
	decodeInto(t, raw, &created)
	require.NotNil(t, created.SettingEvents)
	assert.Equal(t, "poor", created.SettingEvents.SleepQuality)

	// a patch that never mentions the field leaves it alone
	resp, raw = doJSON(t, http.MethodPatch, server.URL+"/api/incidents/"+created.ID, map[string]any{"notes": "rough morning"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var updated domain.ExpandedIncident
	decodeInto(t, raw, &updated)
	require.NotNil(t, updated.SettingEvents)
	assert.True(t, updated.SettingEvents.Illness)

	resp, raw = doJSON(t, http.MethodPatch, server.URL+"/api/incidents/"+created.ID, map[string]any{
		"settingEvents": map[string]any{"hunger": true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	updated = domain.ExpandedIncident{}
	decodeInto(t, raw, &updated)
	require.NotNil(t, updated.SettingEvents)
	assert.True(t, updated.SettingEvents.Hunger)
	assert.Empty(t, updated.SettingEvents.SleepQuality)

	// an explicit null clears the stored record
	resp, raw = doJSON(t, http.MethodPatch, server.URL+"/api/incidents/"+created.ID, map[string]any{
		"settingEvents": nil,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	updated = domain.ExpandedIncident{}
	decodeInto(t, raw, &updated)
	assert.Nil(t, updated.SettingEvents)
}

func TestIncidentValidationErrors(t *testing.T) {
	server := newTestServer(t)
	child := createChild(t, server, "Ari")

	ts := "2026-03-14T15:09:00Z"
	cases := []map[string]any{
		{"timestamp": ts, "intensity": 3},
		{"childId": "missing", "timestamp": ts, "intensity": 3},
		{"childId": child.ID, "intensity": 3},
		{"childId": child.ID, "timestamp": ts, "intensity": 0},
		{"childId": child.ID, "timestamp": ts, "intensity": 3, "functionHypothesis": "revenge"},
		{"childId": child.ID, "timestamp": ts, "intensity": 3, "durationSec": -5},
		{"childId": child.ID, "timestamp": ts, "intensity": 3, "attachments": []map[string]any{{"id": "a1", "type": "gif", "uri": "file:///a.gif"}}},
	}
	for i, payload := range cases {
		resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/incidents", payload)
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, resp.StatusCode,
			"case %d: %s", i, string(raw))
	}

	// rejected submissions leave no record behind
	resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/incidents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var incidents []domain.ExpandedIncident
	decodeInto(t, raw, &incidents)
	assert.Empty(t, incidents)
}

func TestListIncidentsFilters(t *testing.T) {
	server := newTestServer(t)
	ari := createChild(t, server, "Ari")
	zoe := createChild(t, server, "Zoe")

	for i, c := range []domain.Child{ari, ari, zoe} {
		resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/incidents", map[string]any{
			"childId":   c.ID,
			"timestamp": fmt.Sprintf("2026-03-1%dT08:00:00Z", i),
			"intensity": 3,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/incidents?childId="+ari.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var incidents []domain.ExpandedIncident
	decodeInto(t, raw, &incidents)
	assert.Len(t, incidents, 2)

	resp, raw = doJSON(t, http.MethodGet, server.URL+"/api/incidents?from=2026-03-11T00:00:00Z&to=2026-03-12T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, raw, &incidents)
	require.Len(t, incidents, 1)
	assert.Equal(t, ari.ID, incidents[0].ChildID)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/incidents?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportSummaryEndpoint(t *testing.T) {
	server := newTestServer(t)
	child := createChild(t, server, "Ari")

	for _, ts := range []string{"2026-03-10T08:15:00Z", "2026-03-10T08:45:00Z", "2026-03-11T16:00:00Z"} {
		resp, raw := doJSON(t, http.MethodPost, server.URL+"/api/incidents", map[string]any{
			"childId": child.ID, "timestamp": ts, "intensity": 2,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/reports/summary?childId="+child.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary domain.ReportSummary
	decodeInto(t, raw, &summary)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.ByHour[8])
	assert.Equal(t, 3, summary.ByIntensity[1])
	require.Len(t, summary.ByDay, 2)
}
