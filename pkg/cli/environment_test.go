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

package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotdl/depotdl/pkg/content"
)

func TestEnvSettings(t *testing.T) {
	tests := []struct {
		name string

		// input
		args    string
		envvars map[string]string

		// expected values
		debug        bool
		url          string
		cell         int
		maxServers   int
		maxDownloads int
		driver       string
		metadataDir  string
	}{
		{
			name:         "defaults",
			maxServers:   20,
			maxDownloads: 4,
			driver:       "disk",
			metadataDir:  ".",
		},
		{
			name:         "with flags set",
			args:         "--debug --service-url=http://cdn.local --cellid 3 --max-servers 8 --max-downloads 2 --driver memory --metadata-dir /tmp/meta",
			debug:        true,
			url:          "http://cdn.local",
			cell:         3,
			maxServers:   8,
			maxDownloads: 2,
			driver:       "memory",
			metadataDir:  "/tmp/meta",
		},
		{
			name:         "with envvars set",
			envvars:      map[string]string{"DEPOTDL_DEBUG": "1", "DEPOTDL_SERVICE_URL": "http://env.local", "DEPOTDL_CELL_ID": "5", "DEPOTDL_MAX_SERVERS": "10", "DEPOTDL_MAX_DOWNLOADS": "not-a-number", "DEPOTDL_DRIVER": "sql"},
			debug:        true,
			url:          "http://env.local",
			cell:         5,
			maxServers:   10,
			maxDownloads: 4,
			driver:       "sql",
			metadataDir:  ".",
		},
		{
			name:         "with flags and envvars set",
			args:         "--max-servers 12 --driver disk",
			envvars:      map[string]string{"DEPOTDL_MAX_SERVERS": "10", "DEPOTDL_DRIVER": "sql", "DEPOTDL_METADATA_DIR": "meta"},
			maxServers:   12,
			maxDownloads: 4,
			driver:       "disk",
			metadataDir:  "meta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer resetEnv()()

			for k, v := range tt.envvars {
				os.Setenv(k, v)
			}

			flags := pflag.NewFlagSet("testing", pflag.ContinueOnError)

			settings := New()
			settings.AddFlags(flags)
			settings.AddTransferFlags(flags)
			require.NoError(t, flags.Parse(strings.Fields(tt.args)))

			assert.Equal(t, tt.debug, settings.Debug)
			assert.Equal(t, tt.url, settings.ServiceURL)
			assert.Equal(t, tt.cell, settings.CellID)
			assert.Equal(t, tt.maxServers, settings.MaxServers)
			assert.Equal(t, tt.maxDownloads, settings.MaxDownloads)
			assert.Equal(t, tt.driver, settings.Driver)
			assert.Equal(t, tt.metadataDir, settings.MetadataDir)
		})
	}
}

func TestTransferSettings(t *testing.T) {
	defer resetEnv()()
	t.Setenv("DEPOTDL_BRANCH_PASSWORD", "")

	settings := New()
	assert.Equal(t, content.DefaultRetries, settings.Retries)
	assert.Equal(t, content.DefaultTimeout, settings.Timeout)
	assert.Empty(t, settings.BranchPassword)

	t.Setenv("DEPOTDL_RETRIES", "1")
	t.Setenv("DEPOTDL_TIMEOUT", "soon")
	t.Setenv("DEPOTDL_BRANCH_PASSWORD", "from-env")
	settings = New()
	assert.Equal(t, 1, settings.Retries)
	assert.Equal(t, content.DefaultTimeout, settings.Timeout, "unparsable durations keep the default")
	assert.Equal(t, "from-env", settings.BranchPassword)

	flags := pflag.NewFlagSet("testing", pflag.ContinueOnError)
	settings.AddTransferFlags(flags)
	require.NoError(t, flags.Parse(strings.Fields("--retries 0 --timeout 30s --branch-password hunter2")))
	assert.Equal(t, 0, settings.Retries)
	assert.Equal(t, 30*time.Second, settings.Timeout)
	assert.Equal(t, "hunter2", settings.BranchPassword)
	assert.Equal(t, "hunter2", settings.ContentConfig().BranchPassword)
	assert.NotContains(t, settings.EnvVars(), "DEPOTDL_BRANCH_PASSWORD")
}

func TestClientOptions(t *testing.T) {
	var branchRequests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&branchRequests, 1)
		switch r.URL.Path {
		case "/v1/apps/250820/branches/beta":
			if r.Header.Get(content.BranchPasswordHeader) != "hunter2" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte(`{"buildId": 1701, "depots": {}}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	s := &EnvSettings{ServiceURL: srv.URL, Retries: 0, Timeout: 5 * time.Second, BranchPassword: "hunter2"}
	c, err := content.NewHTTPClient(s.ClientOptions()...)
	require.NoError(t, err)

	build, err := c.BuildNumber(context.Background(), 250820, "beta")
	require.NoError(t, err)
	assert.Equal(t, uint32(1701), build)

	atomic.StoreInt32(&branchRequests, 0)
	_, err = c.BuildNumber(context.Background(), 250820, "Public")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&branchRequests), "no retries were configured")
}

func TestContentConfig(t *testing.T) {
	s := &EnvSettings{CellID: -1, MaxServers: 2, MaxDownloads: 6}
	cfg := s.ContentConfig()
	assert.Equal(t, uint32(0), cfg.CellID)
	assert.Equal(t, 6, cfg.MaxServers, "servers are raised to the download limit")
	assert.Equal(t, 6, cfg.MaxDownloads)

	s = &EnvSettings{CellID: 7}
	cfg = s.ContentConfig()
	assert.Equal(t, uint32(7), cfg.CellID)
	assert.Equal(t, 20, cfg.MaxServers)
	assert.Equal(t, 4, cfg.MaxDownloads)
}

func TestLoadDefinition(t *testing.T) {
	defer resetEnv()()
	t.Setenv("DEPOTDL_CONFIG_HOME", t.TempDir())

	s := New()
	def, err := s.LoadDefinition()
	require.NoError(t, err)
	assert.Equal(t, "steamvr", def.Name)

	path := filepath.Join(t.TempDir(), "line.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: demo
appId: 1
contentDepot: 2
marker: version.txt
win32: 3
osx: 4
linux: 5
`), 0644))
	s.Definition = path
	def, err = s.LoadDefinition()
	require.NoError(t, err)
	assert.Equal(t, "demo", def.Name)

	s.Definition = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = s.LoadDefinition()
	assert.Error(t, err)
}

func resetEnv() func() {
	origEnv := os.Environ()

	// ensure any local envvars do not hose us
	for e := range New().EnvVars() {
		os.Unsetenv(e)
	}

	return func() {
		for _, pair := range origEnv {
			kv := strings.SplitN(pair, "=", 2)
			os.Setenv(kv[0], kv[1])
		}
	}
}
