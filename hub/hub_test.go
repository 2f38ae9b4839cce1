package hub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gomlx/trainconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepoID = "acme/tiny-llama"

// newTestHub serves a fake hub with one repository and counts the requests
// per path.
func newTestHub(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	requests := &sync.Map{}
	listing := `{"sha": "0123abc", "siblings": [
		{"rfilename": "tokenizer.json"},
		{"rfilename": "tokenizer_config.json"},
		{"rfilename": "special_tokens_map.json"},
		{"rfilename": "spiece.model"},
		{"rfilename": "model.safetensors"},
		{"rfilename": "README.md"}
	]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		count, _ := requests.LoadOrStore(req.URL.Path, new(int))
		*count.(*int)++
		switch req.URL.Path {
		case "/api/models/" + testRepoID,
			"/api/models/" + testRepoID + "/revision/v1.0":
			_, _ = w.Write([]byte(listing))
		default:
			if req.Header.Get("Authorization") == "Bearer secret-token" &&
				req.URL.Path == "/"+testRepoID+"/resolve/main/tokenizer.json" {
				_, _ = fmt.Fprint(w, `{"version": "gated"}`)
				return
			}
			name := filepath.Base(req.URL.Path)
			_, _ = fmt.Fprintf(w, "contents of %s", name)
		}
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func newTestRepo(t *testing.T, server *httptest.Server) *Repo {
	t.Helper()
	repo, err := New(testRepoID, t.TempDir())
	require.NoError(t, err)
	return repo.WithEndpoint(server.URL).Quiet()
}

func TestNewRejectsIllegalIDs(t *testing.T) {
	_, err := New("", t.TempDir())
	require.Error(t, err)

	_, err = New("/etc/passwd", t.TempDir())
	require.Error(t, err)

	_, err = New("acme/../../escape", t.TempDir())
	require.Error(t, err)
}

func TestDir(t *testing.T) {
	repo, err := New(testRepoID, "/cache")
	require.NoError(t, err)
	assert.Equal(t, "/cache/acme_tiny-llama", repo.Dir())

	repo.WithRevision("v1.0")
	assert.Equal(t, "/cache/acme_tiny-llama@v1.0", repo.Dir())
}

func TestTokenizerFiles(t *testing.T) {
	server, _ := newTestHub(t)
	repo := newTestRepo(t, server)

	names, err := repo.TokenizerFiles()
	require.NoError(t, err)
	// Weights and docs are filtered out, sentencepiece models are kept.
	assert.Equal(t, []string{
		"tokenizer.json",
		"tokenizer_config.json",
		"special_tokens_map.json",
		"spiece.model",
	}, names)
}

func TestFetch(t *testing.T) {
	server, requests := newTestHub(t)
	repo := newTestRepo(t, server)

	dir, err := repo.Fetch()
	require.NoError(t, err)
	assert.Equal(t, repo.Dir(), dir)

	contents, err := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	require.NoError(t, err)
	assert.Equal(t, "contents of tokenizer.json", string(contents))
	assert.FileExists(t, filepath.Join(dir, "spiece.model"))
	assert.NoFileExists(t, filepath.Join(dir, "model.safetensors"))
	assert.NoFileExists(t, filepath.Join(dir, "tokenizer.json.downloading"))

	// A second fetch is served entirely from the cache.
	_, err = repo.Fetch()
	require.NoError(t, err)
	count, ok := requests.Load("/" + testRepoID + "/resolve/main/tokenizer.json")
	require.True(t, ok)
	assert.Equal(t, 1, *count.(*int))
	count, ok = requests.Load("/api/models/" + testRepoID)
	require.True(t, ok)
	assert.Equal(t, 1, *count.(*int))
}

func TestFetchPinnedRevision(t *testing.T) {
	server, requests := newTestHub(t)
	repo := newTestRepo(t, server).WithRevision("v1.0")

	_, err := repo.Fetch()
	require.NoError(t, err)
	_, ok := requests.Load("/api/models/" + testRepoID + "/revision/v1.0")
	assert.True(t, ok)
	_, ok = requests.Load("/" + testRepoID + "/resolve/v1.0/tokenizer.json")
	assert.True(t, ok)
}

func TestFetchWithAuthToken(t *testing.T) {
	server, _ := newTestHub(t)
	repo := newTestRepo(t, server).WithAuthToken("secret-token")

	dir, err := repo.Fetch()
	require.NoError(t, err)
	contents, err := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"version": "gated"}`, string(contents))
}

func TestFetchUnknownRepo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-Error-Message", "Repository not found")
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	repo, err := New("acme/no-such-repo", t.TempDir())
	require.NoError(t, err)
	_, err = repo.WithEndpoint(server.URL).Quiet().Fetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Repository not found")
}

func TestResolveTokenizerLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &trainconfig.TokenizerConfig{TokenizerNameOrPath: dir}
	resolved, err := ResolveTokenizer(cfg, t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	cfg.TokenizerNameOrPath = filepath.Join(dir, "missing")
	_, err = ResolveTokenizer(cfg, t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
