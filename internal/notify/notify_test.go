package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
	"etcd-backup-agent/internal/logging"
)

func notifyConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		PingURL:    url,
		APIKey:     "test-key",
		APIBaseURL: url,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}
}

func TestPingerSendsStatus(t *testing.T) {
	var gotPath, gotStatus string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStatus = r.URL.Query().Get("status")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewPinger(notifyConfig(server.URL+"/ping/abc"), logging.NewDefaultLogger())
	p.Ping(context.Background(), StatusSuccess)

	assert.Equal(t, "/ping/abc", gotPath)
	assert.Equal(t, string(StatusSuccess), gotStatus)
}

func TestPingerRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewPinger(notifyConfig(server.URL), logging.NewDefaultLogger())
	p.Ping(context.Background(), StatusFailure)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPingerDisabledWithoutURL(t *testing.T) {
	p := NewPinger(config.NotifyConfig{Timeout: time.Second}, logging.NewDefaultLogger())
	// must not panic or block
	p.Ping(context.Background(), StatusNoChanges)
}

func TestChecksClientRequiresAPIKey(t *testing.T) {
	_, err := NewChecksClient(config.NotifyConfig{Timeout: time.Second}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))
}

func TestChecksClientList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/checks/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"checks": []Check{{Name: "etcd-backup", PingURL: "https://hc.example/p/1", Status: "up"}},
		})
	}))
	defer server.Close()

	c, err := NewChecksClient(notifyConfig(server.URL), logging.NewDefaultLogger())
	require.NoError(t, err)

	checks, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "etcd-backup", checks[0].Name)
	assert.Equal(t, "https://hc.example/p/1", checks[0].PingURL)
}

func TestChecksClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	c, err := NewChecksClient(notifyConfig(server.URL), logging.NewDefaultLogger())
	require.NoError(t, err)

	_, err = c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestChecksClientSync(t *testing.T) {
	var created, updated []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/checks/":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"checks": []Check{{Name: "existing", UUID: "uuid-1", PingURL: "https://hc.example/p/old"}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/checks/":
			var def CheckDefinition
			require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
			created = append(created, def.Name)
			json.NewEncoder(w).Encode(Check{Name: def.Name, PingURL: "https://hc.example/p/new"})
		case r.Method == http.MethodPost && r.URL.Path == "/checks/uuid-1":
			var def CheckDefinition
			require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
			updated = append(updated, def.Name)
			json.NewEncoder(w).Encode(Check{Name: def.Name, PingURL: "https://hc.example/p/old"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c, err := NewChecksClient(notifyConfig(server.URL), logging.NewDefaultLogger())
	require.NoError(t, err)

	urls, err := c.Sync(context.Background(), []CheckDefinition{
		{Name: "existing", Timeout: 3600, Grace: 900},
		{Name: "fresh", Timeout: 3600, Grace: 900},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"existing"}, updated)
	assert.Equal(t, []string{"fresh"}, created)
	assert.Equal(t, "https://hc.example/p/old", urls["existing"])
	assert.Equal(t, "https://hc.example/p/new", urls["fresh"])
}

func TestChecksClientDelete(t *testing.T) {
	var deleted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		json.NewEncoder(w).Encode(Check{Name: "stale"})
	}))
	defer server.Close()

	c, err := NewChecksClient(notifyConfig(server.URL), logging.NewDefaultLogger())
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "uuid-9"))
	assert.Equal(t, "/checks/uuid-9", deleted)
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.yaml")
	content := `checks:
  - name: etcd-backup
    timeout: 86400
    grace: 3600
    tags: etcd backup
  - name: ca-backup
    timeout: 86400
    grace: 3600
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "etcd-backup", defs[0].Name)
	assert.Equal(t, 86400, defs[0].Timeout)
	assert.Equal(t, "etcd backup", defs[0].Tags)
}

func TestLoadDefinitionsRejectsNamelessCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checks:\n  - timeout: 60\n"), 0o644))

	_, err := LoadDefinitions(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))
}

func TestLoadDefinitionsMissingFile(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
