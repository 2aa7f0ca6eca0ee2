package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 42, "title": "Inspect pump", "status": "IN_PROGRESS",
			"latitude": 14.6005, "longitude": 120.985}]`))
	})
	mux.HandleFunc("/locations/42/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id": 42, "latitude": 14.5995, "longitude": 120.9842,
			"recorded_at": "2026-03-01T08:30:00Z"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	body := "log:\n  level: error\nsites:\n  - name: other\n    api:\n      baseURL: http://127.0.0.1:1\n" +
		"  - name: main\n    api:\n      baseURL: " + baseURL + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDistanceCmd(t *testing.T) {
	out, err := execute(t, "distance", "0", "0", "0", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "km")
}

func TestDistanceCmd_InvalidArgs(t *testing.T) {
	_, err := execute(t, "distance", "0", "0", "x", "1")
	assert.Error(t, err)

	_, err = execute(t, "distance", "91", "0", "0", "1")
	assert.Error(t, err)

	_, err = execute(t, "distance", "1", "2")
	assert.Error(t, err)
}

func TestSnapshotCmd(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "snapshot", "--config", cfg, "--site", "main")
	require.NoError(t, err)

	var got snapshotOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, int64(42), got.Tasks[0].ID)
	require.NotNil(t, got.Tasks[0].Position)
	assert.InDelta(t, 14.5995, got.Tasks[0].Position.Coordinate.Lat, 1e-9)
}

func TestSnapshotCmd_UnknownSite(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, "snapshot", "--config", cfg, "--site", "missing")
	assert.Error(t, err)
}

func TestFeedCmd_WritesBinaryFeed(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)
	dst := filepath.Join(t.TempDir(), "vp.pb")

	_, err := execute(t, "feed", "--config", cfg, "--site", "main", "--out", dst)
	require.NoError(t, err)

	buf, err := os.ReadFile(dst)
	require.NoError(t, err)
	var msg gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(buf, &msg))
	require.Len(t, msg.GetEntity(), 1)
	assert.InDelta(t, 14.5995, msg.GetEntity()[0].GetVehicle().GetPosition().GetLatitude(), 1e-4)
}

func TestFeedCmd_TextToStdout(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "feed", "--config", cfg, "--site", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "gtfs_realtime_version")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "snapshot", "--config", filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
