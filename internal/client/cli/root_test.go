package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/client/iocli"
)

const testModels = `
models:
  - name: widget
    references:
      parts: part
    modifiers:
      after_get: |
        function (e) { e.label = e.name.toUpperCase(); return e }
  - name: part
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newBackend(t *testing.T, token string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		if r.Method == http.MethodGet && r.URL.Path == "/api/v1/widgets/7" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": "gear"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &bytes.Buffer{}), "test")
	require.NotNil(t, cmd)
	assert.Equal(t, "gophcache", cmd.Use)
	assert.Equal(t, "test", cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &bytes.Buffer{}), "test")

	for _, name := range []string{"get", "shell", "run"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &bytes.Buffer{}), "test")

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{name: "server", def: "http://localhost:8080/api/v1"},
		{name: "models", shorthand: "m", def: "models.yaml"},
		{name: "ask-token", def: "false"},
		{name: "data-path", def: ""},
		{name: "timeout", def: "30s"},
		{name: "format", def: "text"},
		{name: "verbose", shorthand: "v", def: "false"},
		{name: "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			if tt.name != "token" {
				assert.Equal(t, tt.def, flag.DefValue)
			}
		})
	}
}

func TestRootCommand_Get(t *testing.T) {
	srv, hits := newBackend(t, "")
	models := writeFile(t, "models.yaml", testModels)

	var out bytes.Buffer
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &out), "test")
	cmd.SetArgs([]string{"--models", models, "--server", srv.URL + "/api/v1", "--format", "json", "get", "widget", "7"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, int32(1), hits.Load())

	var entity map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entity))
	assert.Equal(t, "gear", entity["name"])
	assert.Equal(t, "GEAR", entity["label"])
}

func TestRootCommand_AskToken(t *testing.T) {
	srv, _ := newBackend(t, "s3cret")
	models := writeFile(t, "models.yaml", testModels)

	var out bytes.Buffer
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader("s3cret\n"), &out), "test")
	cmd.SetArgs([]string{"-m", models, "--server", srv.URL + "/api/v1", "--ask-token", "get", "widget", "7"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Token: ")
	assert.Contains(t, out.String(), "gear")
}

func TestRootCommand_Run(t *testing.T) {
	srv, hits := newBackend(t, "")
	models := writeFile(t, "models.yaml", testModels)
	script := writeFile(t, "session.txt", strings.Join([]string{
		"# fetch, then read from the cache",
		"get widget 7",
		"get widget 7",
		`list widget label == "GEAR"`,
		`queue widget patch {"id": 7, "name": "cog"}`,
		"cancel widget",
		"show widget",
	}, "\n"))

	var out bytes.Buffer
	cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &out), "test")
	cmd.SetArgs([]string{"--models", models, "--server", srv.URL + "/api/v1", "run", script})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, out.String(), "widget 7 (cached)")
	assert.Contains(t, out.String(), "Found 1 widget entities")
	assert.Contains(t, out.String(), "Queue:     empty")
}

func TestRootCommand_Errors(t *testing.T) {
	models := writeFile(t, "models.yaml", testModels)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "invalid format",
			args: []string{"--models", models, "--format", "xml", "get", "widget"},
			want: "invalid format",
		},
		{
			name: "missing config",
			args: []string{"--models", filepath.Join(t.TempDir(), "nope.yaml"), "get", "widget"},
			want: "failed to read config file",
		},
		{
			name: "missing script",
			args: []string{"--models", models, "run", filepath.Join(t.TempDir(), "nope.txt")},
			want: "failed to open script",
		},
		{
			name: "get without model",
			args: []string{"--models", models, "get"},
			want: "arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCommand(iocli.NewStream(strings.NewReader(""), &bytes.Buffer{}), "test")
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
