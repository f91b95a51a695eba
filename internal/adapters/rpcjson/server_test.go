package rpcjson

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/opencaretools/abctrack/internal/adapters/db/gormstore"
	"github.com/opencaretools/abctrack/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcClient struct {
	enc *json.Encoder
	dec *json.Decoder
}

func newRPCClient(t *testing.T) *rpcClient {
	t.Helper()
	dir := t.TempDir()
	db, err := gormstore.OpenSQLite(filepath.Join(dir, "abctrack.db"))
	require.NoError(t, err)
	require.NoError(t, gormstore.RunMigrations(context.Background(), db, gormstore.DriverSQLite))
	service := application.NewTrackerService(gormstore.New(db))

	socket := filepath.Join(dir, "abctrack.sock")
	server, err := Start(socket, service)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rpcClient{enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

func (c *rpcClient) call(t *testing.T, method string, params any) response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, c.enc.Encode(request{JSONRPC: "2.0", Method: method, Params: raw, ID: 1}))
	var resp response
	require.NoError(t, c.dec.Decode(&resp))
	return resp
}

func resultMap(t *testing.T, resp response) map[string]any {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	m, ok := resp.Result.(map[string]any)
	require.True(t, ok, "result is not an object: %T", resp.Result)
	return m
}

func TestDispatchLifecycle(t *testing.T) {
	c := newRPCClient(t)

	child := resultMap(t, c.call(t, "children.create", map[string]any{"name": "Ari"}))
	require.NotEmpty(t, child["id"])

	item := resultMap(t, c.call(t, "catalogs.create", map[string]any{"type": "behaviors", "label": "Hitting"}))
	require.NotEmpty(t, item["id"])

	incident := resultMap(t, c.call(t, "incidents.create", map[string]any{
		"childId":     child["id"],
		"timestamp":   "2026-03-14T15:09:00Z",
		"intensity":   3,
		"behaviorIds": []any{item["id"]},
	}))
	require.NotEmpty(t, incident["id"])
	assert.Equal(t, child["id"], incident["childId"])

	resp := c.call(t, "incidents.update", map[string]any{
		"id":    incident["id"],
		"patch": map[string]any{"notes": "calmed after five minutes"},
	})
	updated := resultMap(t, resp)
	assert.Equal(t, "calmed after five minutes", updated["notes"])

	summary := resultMap(t, c.call(t, "reports.summary", map[string]any{"childId": child["id"]}))
	assert.Equal(t, float64(1), summary["total"])

	deleted := resultMap(t, c.call(t, "incidents.delete", map[string]any{"id": incident["id"]}))
	assert.Equal(t, true, deleted["success"])
}

func TestDispatchErrors(t *testing.T) {
	c := newRPCClient(t)

	resp := c.call(t, "catalogs.list", map[string]any{"type": "verbs"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 40000, resp.Error.Code)

	resp = c.call(t, "incidents.get", map[string]any{"id": "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 40400, resp.Error.Code)

	resp = c.call(t, "nope.nothing", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)

	resp = c.call(t, "children.create", "bogus")
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}
