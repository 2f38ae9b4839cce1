// Package hub resolves and downloads the tokenizer artifact a run
// configuration references: either a local directory, used as is, or a
// HuggingFace Hub repository id such as "meta-llama/Meta-Llama-3-8B", whose
// tokenizer files are downloaded and cached locally.
//
// Only the tokenizer metadata files are fetched (tokenizer.json,
// tokenizer_config.json, special_tokens_map.json, sentencepiece models, ...).
// Model weights are never downloaded.
//
// Example:
//
//	dir, err := hub.ResolveTokenizer(&cfg.Tokenizer, cacheDir, os.Getenv("TRAINCONFIG_HUB_TOKEN"))
//	if err != nil { ... }
//	fmt.Printf("tokenizer files in %s\n", dir)
package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/trainconfig"
	"github.com/gomlx/trainconfig/internal/fsutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// DefaultEndpoint is the hub the files are fetched from. Tests and mirrors
// override it with Repo.WithEndpoint.
const DefaultEndpoint = "https://huggingface.co"

// DefaultRevision is used when the configuration pins no revision.
const DefaultRevision = "main"

// Repo is a reference to a tokenizer repository on the hub, created with New
// and configured with the WithXxx chained setters.
type Repo struct {
	// ID includes the owner: e.g. "meta-llama/Meta-Llama-3-8B".
	ID string

	// BaseDir is the local cache directory; each repo+revision gets its own
	// sub-directory underneath.
	BaseDir string

	revision  string
	authToken string
	endpoint  string
	quiet     bool

	info *repoInfo
}

// New creates a reference to the tokenizer repository with the given id,
// cached under baseDir.
func New(id, baseDir string) (*Repo, error) {
	if id == "" {
		return nil, errors.New("hub: empty repository id")
	}
	if strings.HasPrefix(id, "/") || strings.Contains(id, "..") {
		return nil, errors.Errorf("hub: illegal repository id %q", id)
	}
	baseDir = fsutil.ExpandTilde(baseDir)
	if !filepath.IsAbs(baseDir) {
		workingDir, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "hub: cannot resolve working directory for relative cache dir")
		}
		baseDir = filepath.Join(workingDir, baseDir)
	}
	return &Repo{
		ID:       id,
		BaseDir:  baseDir,
		revision: DefaultRevision,
		endpoint: DefaultEndpoint,
	}, nil
}

// WithRevision pins a branch, tag or commit hash. Default is "main".
func (r *Repo) WithRevision(revision string) *Repo {
	if revision != "" {
		r.revision = revision
	}
	return r
}

// WithAuthToken sets the bearer token used for gated repositories.
func (r *Repo) WithAuthToken(token string) *Repo {
	r.authToken = token
	return r
}

// WithEndpoint points the repo at a different hub endpoint (a mirror, or a
// test server).
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.endpoint = strings.TrimSuffix(endpoint, "/")
	return r
}

// Quiet disables the download progress bars.
func (r *Repo) Quiet() *Repo {
	r.quiet = true
	return r
}

// Dir is the local cache directory of this repo+revision.
func (r *Repo) Dir() string {
	name := strings.ReplaceAll(r.ID, "/", "_")
	if r.revision != DefaultRevision {
		name += "@" + strings.ReplaceAll(r.revision, "/", "_")
	}
	return filepath.Join(r.BaseDir, name)
}

// infoFile caches the repository file listing, so repeated runs don't go to
// the network. Remove it to force a re-listing.
const infoFile = "_info_.json"

// repoInfo is the json served by <endpoint>/api/models/<id>.
type repoInfo struct {
	SHA      string     `json:"sha"`
	Siblings []fileInfo `json:"siblings"`
}

type fileInfo struct {
	Name string `json:"rfilename"`
}

func (r *Repo) fetchInfo() error {
	if r.info != nil {
		return nil
	}
	if err := os.MkdirAll(r.Dir(), 0755); err != nil {
		return errors.Wrapf(err, "hub: failed to create cache directory %q", r.Dir())
	}
	infoPath := filepath.Join(r.Dir(), infoFile)
	if !fsutil.FileExists(infoPath) {
		if err := r.downloadFile(r.infoURL(), infoPath, "file listing"); err != nil {
			return errors.WithMessagef(err, "hub: failed to list files of %q", r.ID)
		}
	}
	contents, err := os.ReadFile(infoPath)
	if err != nil {
		return errors.Wrapf(err, "hub: failed to read cached file listing %q -- remove it to re-download",
			infoPath)
	}
	r.info = &repoInfo{}
	if err = json.Unmarshal(contents, r.info); err != nil {
		return errors.Wrapf(err, "hub: failed to parse file listing in %q (from %q)", infoPath, r.infoURL())
	}
	return nil
}

// tokenizerFileNames are the exact artifact files worth fetching; additionally
// any ".model" file (sentencepiece) is taken.
var tokenizerFileNames = map[string]bool{
	"tokenizer.json":          true,
	"tokenizer_config.json":   true,
	"special_tokens_map.json": true,
	"added_tokens.json":       true,
	"vocab.json":              true,
	"merges.txt":              true,
}

func isTokenizerFile(name string) bool {
	return tokenizerFileNames[name] || path.Ext(name) == ".model"
}

// TokenizerFiles lists the tokenizer artifact files of the repository,
// fetching the file listing if needed.
func (r *Repo) TokenizerFiles() ([]string, error) {
	if err := r.fetchInfo(); err != nil {
		return nil, err
	}
	var names []string
	for _, sibling := range r.info.Siblings {
		name := sibling.Name
		if path.IsAbs(name) || strings.Contains(name, "..") {
			return nil, errors.Errorf("hub: repository %q lists illegal file name %q", r.ID, name)
		}
		if isTokenizerFile(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.Errorf("hub: repository %q has no tokenizer files", r.ID)
	}
	return names, nil
}

// Fetch downloads the repository's tokenizer files that are not cached yet
// and returns the local directory holding them. Files are downloaded to a
// ".downloading" suffix and renamed once complete, so an interrupted fetch
// never leaves a truncated artifact behind.
func (r *Repo) Fetch() (dir string, err error) {
	names, err := r.TokenizerFiles()
	if err != nil {
		return "", err
	}
	var fetched int
	var fetchedBytes int64
	for _, name := range names {
		filePath := filepath.Join(r.Dir(), name)
		if fsutil.FileExists(filePath) {
			continue
		}
		klog.V(1).Infof("hub: downloading %s from %s", name, r.ID)
		if err = r.downloadFile(r.fileURL(name), filePath, name); err != nil {
			return "", errors.WithMessagef(err, "hub: failed to fetch %q from %q", name, r.ID)
		}
		if stat, statErr := os.Stat(filePath); statErr == nil {
			fetchedBytes += stat.Size()
		}
		fetched++
	}
	if fetched > 0 && !r.quiet {
		fmt.Fprintf(os.Stderr, "Downloaded %d tokenizer file(s) (%s) from %s to %s\n",
			fetched, humanize.Bytes(uint64(fetchedBytes)), r.ID, r.Dir())
	}
	return r.Dir(), nil
}

func (r *Repo) downloadFile(url, filePath, description string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", filePath)
	}
	tmpPath := filePath + ".downloading"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %q", tmpPath)
	}
	defer func() {
		if file != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to create request for %q", url)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to download %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad status %q downloading %q: %s",
			resp.Status, url, resp.Header.Get("X-Error-Message"))
	}

	var w io.Writer = file
	if !r.quiet {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionUseANSICodes(true))
		w = io.MultiWriter(file, bar)
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		return errors.Wrapf(err, "failed to download %q to %q", url, tmpPath)
	}
	if err = file.Close(); err != nil {
		file = nil
		return errors.Wrapf(err, "failed to close %q", tmpPath)
	}
	file = nil
	return errors.Wrapf(os.Rename(tmpPath, filePath), "failed to rename %q", tmpPath)
}

func (r *Repo) infoURL() string {
	if r.revision != DefaultRevision {
		return fmt.Sprintf("%s/api/models/%s/revision/%s", r.endpoint, r.ID, r.revision)
	}
	return fmt.Sprintf("%s/api/models/%s", r.endpoint, r.ID)
}

func (r *Repo) fileURL(name string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", r.endpoint, r.ID, r.revision, name)
}

// ResolveTokenizer returns a local directory holding the tokenizer artifact a
// configuration references: the referenced path itself when it is local, or
// the cache directory after fetching from the hub. authToken may be empty for
// public repositories.
func ResolveTokenizer(cfg *trainconfig.TokenizerConfig, cacheDir, authToken string) (string, error) {
	if cfg.IsLocal() {
		localPath := cfg.LocalPath()
		if !fsutil.FileExists(localPath) {
			return "", errors.Errorf("hub: tokenizer path %q does not exist", localPath)
		}
		return localPath, nil
	}
	repo, err := New(cfg.TokenizerNameOrPath, cacheDir)
	if err != nil {
		return "", err
	}
	return repo.WithRevision(cfg.Revision(DefaultRevision)).WithAuthToken(authToken).Fetch()
}
