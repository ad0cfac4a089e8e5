/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package content

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotdl/depotdl/pkg/filter"
)

func sha1hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

type fakeService struct {
	*httptest.Server
	chunkFailures int32
	sessions      int32
	closed        int32
}

// newFakeService serves app 250820 with depots 250821 (entitled) and 250822
// (not entitled) on branches Public and beta. beta requires the password "hunter2".
func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{}
	files := map[string][]string{
		"bin/version.txt":      {"1.2.", "3\n"},
		"bin/win32/vrcmd.exe":  {"MZ"},
		"resources/readme.txt": {"hello ", "world"},
	}
	chunks := map[string]string{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		atomic.AddInt32(&fs.sessions, 1)
		json.NewEncoder(w).Encode(sessionResponse{Token: "tok", CellID: 7})
	})
	mux.HandleFunc("/v1/sessions/tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		atomic.AddInt32(&fs.closed, 1)
	})
	mux.HandleFunc("/v1/apps/250820/branches/", func(w http.ResponseWriter, r *http.Request) {
		branch := strings.TrimPrefix(r.URL.Path, "/v1/apps/250820/branches/")
		build := uint32(100)
		manifest := "2971217845583775832"
		switch branch {
		case "Public":
		case "beta":
			if r.Header.Get(BranchPasswordHeader) != "hunter2" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			build, manifest = 101, "6412586717092468451"
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(branchInfo{
			BuildID: build,
			Depots: map[string]depotInfo{
				"250821": {Manifest: manifest, OSList: "windows", Entitled: true},
				"250822": {Manifest: "8469047631146748620", OSList: "macos"},
			},
		})
	})
	mux.HandleFunc("/v1/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("cell"))
		json.NewEncoder(w).Encode(serverList{Servers: []string{fs.URL + "/cdn1", fs.URL + "/cdn2"}})
	})
	manifest := Manifest{DepotID: 250821}
	for name, parts := range files {
		mf := ManifestFile{Name: name, SHA1: sha1hex(strings.Join(parts, ""))}
		for _, p := range parts {
			id := sha1hex(p)
			chunks[id] = p
			mf.Chunks = append(mf.Chunks, Chunk{ID: id, Offset: mf.Size, Size: int64(len(p))})
			mf.Size += int64(len(p))
		}
		manifest.Files = append(manifest.Files, mf)
	}
	for _, cdn := range []string{"/cdn1", "/cdn2"} {
		mux.HandleFunc(cdn+"/depot/", func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Split(r.URL.Path, "/")
			// /cdnN/depot/{depot}/{kind}/{id}
			kind, id := parts[4], parts[5]
			switch kind {
			case "manifest":
				m := manifest
				fmt.Sscan(id, &m.ManifestID)
				json.NewEncoder(w).Encode(m)
			case "chunk":
				if atomic.AddInt32(&fs.chunkFailures, -1) >= 0 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.Write([]byte(chunks[id]))
			}
		})
	}
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(t *testing.T, fs *fakeService, opts ...Option) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(append([]Option{WithURL(fs.URL), WithHTTPClient(fs.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientRequiresURL(t *testing.T) {
	_, err := NewHTTPClient()
	assert.Error(t, err)
}

func TestHTTPClientSession(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs)
	ctx := context.Background()

	require.Error(t, c.Connect(ctx, Credentials{Username: "bad", Password: "x"}))
	require.NoError(t, c.Connect(ctx, Credentials{}))
	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fs.closed))
}

func TestHTTPClientResolve(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs, WithBranchPassword("hunter2"))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, Credentials{}))

	build, err := c.BuildNumber(ctx, 250820, "beta")
	require.NoError(t, err)
	assert.Equal(t, uint32(101), build)

	id, err := c.ManifestID(ctx, 250821, 250820, "Public")
	require.NoError(t, err)
	assert.Equal(t, uint64(2971217845583775832), id)

	id, err = c.ManifestID(ctx, 250829, 250820, "Public")
	assert.Error(t, err)
	assert.Equal(t, uint64(InvalidManifestID), id)

	_, err = c.BuildNumber(ctx, 250820, "nope")
	assert.Error(t, err)
}

func TestHTTPClientDownload(t *testing.T) {
	fs := newFakeService(t)
	fs.chunkFailures = 1
	c := newTestClient(t, fs)
	ctx := context.Background()

	cfg := NewConfig()
	cfg.InstallDirectory = t.TempDir()
	cfg.Files = filter.Parse("^bin/\nresources/readme.txt")
	req := Request{AppID: 250820, DepotID: 250821, Branch: "Public", Config: cfg}

	require.Error(t, c.Download(ctx, req), "download requires a session")
	require.NoError(t, c.Connect(ctx, Credentials{}))
	require.NoError(t, c.Download(ctx, req))

	b, err := os.ReadFile(filepath.Join(cfg.InstallDirectory, "bin", "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", string(b))
	b, err = os.ReadFile(filepath.Join(cfg.InstallDirectory, "resources", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))

	// a second verified pass leaves intact files alone
	req.Config.VerifyAll = true
	require.NoError(t, c.Download(ctx, req))
}

func TestHTTPClientFailedDownloadIsRetried(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs, WithRetries(0))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, Credentials{}))

	cfg := NewConfig()
	cfg.InstallDirectory = t.TempDir()
	req := Request{AppID: 250820, DepotID: 250821, Branch: "Public", Config: cfg}

	atomic.StoreInt32(&fs.chunkFailures, 1000)
	require.Error(t, c.Download(ctx, req))

	var left []string
	require.NoError(t, filepath.Walk(cfg.InstallDirectory, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			left = append(left, p)
		}
		return nil
	}))
	assert.Empty(t, left, "a failed download leaves no files behind")

	atomic.StoreInt32(&fs.chunkFailures, 0)
	require.NoError(t, c.Download(ctx, req))
	b, err := os.ReadFile(filepath.Join(cfg.InstallDirectory, "bin", "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", string(b))
	b, err = os.ReadFile(filepath.Join(cfg.InstallDirectory, "resources", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
}

func TestHTTPClientDownloadFilter(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, Credentials{}))

	cfg := NewConfig()
	cfg.InstallDirectory = t.TempDir()
	cfg.Files = filter.Literals(`bin\version.txt`)
	require.NoError(t, c.Download(ctx, Request{AppID: 250820, DepotID: 250821, Branch: "Public", Config: cfg}))

	_, err := os.Stat(filepath.Join(cfg.InstallDirectory, "bin", "version.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.InstallDirectory, "resources"))
	assert.True(t, os.IsNotExist(err))
}

func TestHTTPClientEntitlement(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, Credentials{}))

	cfg := NewConfig()
	cfg.InstallDirectory = t.TempDir()
	cfg.DownloadManifestOnly = true
	req := Request{AppID: 250820, DepotID: 250822, Branch: "Public", Config: cfg}
	assert.Error(t, c.Download(ctx, req))

	req.ForceDepot = true
	require.NoError(t, c.Download(ctx, req))
	b, err := os.ReadFile(filepath.Join(cfg.InstallDirectory, "manifest_250822_8469047631146748620.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "bin/version.txt")
}

func TestHTTPClientForcedManifest(t *testing.T) {
	fs := newFakeService(t)
	c := newTestClient(t, fs)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, Credentials{}))

	cfg := NewConfig()
	cfg.InstallDirectory = t.TempDir()
	cfg.DownloadManifestOnly = true
	cfg.ManifestID = 986788611431053423
	require.NoError(t, c.Download(ctx, Request{AppID: 250820, DepotID: 250821, Branch: "Public", Config: cfg}))
	_, err := os.Stat(filepath.Join(cfg.InstallDirectory, "manifest_250821_986788611431053423.txt"))
	assert.NoError(t, err)

	err = c.Download(ctx, Request{AppID: 250820, DepotID: InvalidDepotID, Branch: "Public", Config: cfg})
	assert.Error(t, err, "a forced manifest needs a depot")
}
