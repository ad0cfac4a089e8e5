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

package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/content/contenttest"
	"github.com/depotdl/depotdl/pkg/depot"
)

func TestDownloadValidation(t *testing.T) {
	client := steamClient()
	cfg, _ := actionConfigFixture(t, client)

	dl := NewDownload(cfg)
	_, err := dl.Run(context.Background())
	require.Error(t, err)
	assert.True(t, depot.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "--app not specified")

	dl.Target = depot.Target{AppID: 250820, DepotID: depot.InvalidDepotID, ManifestID: 42}
	_, err = dl.Run(context.Background())
	assert.True(t, depot.IsConfigurationError(err))

	// nothing reached the service
	assert.Empty(t, client.Calls())
}

func TestDownload(t *testing.T) {
	client := steamClient()
	cfg, hook := actionConfigFixture(t, client)
	dir := t.TempDir()

	dl := NewDownload(cfg)
	dl.Target = depot.NewTarget(250820)
	dl.Target.DepotID = 250824
	dl.Target.Branch = "beta"
	dl.Dir = dir
	res, err := dl.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.FileExists(t, filepath.Join(dir, "bin", "version.txt"))
	assert.FileExists(t, filepath.Join(dir, "resources", "settings.vrsettings"))

	calls := client.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, contenttest.OpConnect, calls[0].Op)
	assert.Equal(t, contenttest.OpManifestID, calls[1].Op)
	assert.Equal(t, "beta", calls[1].Branch)
	assert.Equal(t, contenttest.OpDownload, calls[2].Op)
	assert.Equal(t, "beta", calls[2].Branch)
	assert.Equal(t, uint64(101), calls[2].ManifestID)
	assert.Equal(t, contenttest.OpDisconnect, calls[3].Op)
	assert.Equal(t, uint64(101), res.Target.ManifestID)
	assert.Equal(t, "app 250820 depot 250824 branch beta", res.Name)
	assert.True(t, hasMessage(hook, "No username given. Using anonymous account"))
}

func TestDownloadUnknownBranch(t *testing.T) {
	client := steamClient()
	cfg, _ := actionConfigFixture(t, client)

	dl := NewDownload(cfg)
	dl.Target = depot.NewTarget(250820)
	dl.Target.DepotID = 250899
	dl.Target.Branch = "nightly"
	dl.Dir = t.TempDir()
	res, err := dl.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.True(t, depot.IsResolutionError(res.Err))
	assert.False(t, depot.IsTransferError(res.Err))

	assert.Len(t, client.CallsOf(contenttest.OpManifestID), 1)
	assert.Empty(t, client.CallsOf(contenttest.OpDownload))
	assert.False(t, client.Connected())
}

func TestDownloadForcedManifest(t *testing.T) {
	client := steamClient()
	cfg, _ := actionConfigFixture(t, client)

	dl := NewDownload(cfg)
	dl.Target = depot.Target{AppID: 250820, DepotID: 250821, ManifestID: 2971217845583775832, ForceDepot: true}
	dl.Dir = t.TempDir()
	_, err := dl.Run(context.Background())
	require.NoError(t, err)

	downloads := client.CallsOf(contenttest.OpDownload)
	require.Len(t, downloads, 1)
	assert.Equal(t, uint64(2971217845583775832), downloads[0].ManifestID)
	assert.True(t, downloads[0].ForceDepot)
	assert.Empty(t, client.CallsOf(contenttest.OpManifestID))
}

func TestDownloadFileList(t *testing.T) {
	client := steamClient()
	cfg, hook := actionConfigFixture(t, client)

	list := filepath.Join(t.TempDir(), "files.txt")
	require.NoError(t, os.WriteFile(list, []byte("^resources/\r\n"), 0644))

	dir := t.TempDir()
	dl := NewDownload(cfg)
	dl.Target = depot.NewTarget(250820)
	dl.Target.DepotID = 250824
	dl.Dir = dir
	dl.FileList = list
	_, err := dl.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "resources", "settings.vrsettings"))
	assert.NoFileExists(t, filepath.Join(dir, "bin", "version.txt"))

	// an unreadable list is a warning and nothing is filtered
	dir = t.TempDir()
	dl.Dir = dir
	dl.FileList = filepath.Join(t.TempDir(), "missing.txt")
	_, err = dl.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "bin", "version.txt"))
	assert.True(t, hasMessage(hook, "Warning: unable to load filelist"))
}

func TestDownloadTransferFailure(t *testing.T) {
	client := steamClient()
	client.DownloadErr = func(content.Request) error { return errors.New("no servers") }
	cfg, _ := actionConfigFixture(t, client)

	dl := NewDownload(cfg)
	dl.Target = depot.NewTarget(250820)
	dl.Dir = t.TempDir()
	res, err := dl.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.True(t, depot.IsTransferError(res.Err))
	assert.False(t, client.Connected())
}

func TestDownloadSessionFailure(t *testing.T) {
	client := steamClient()
	client.ConnectErr = errors.New("invalid password")
	cfg, _ := actionConfigFixture(t, client)

	dl := NewDownload(cfg)
	dl.Target = depot.NewTarget(250820)
	dl.Dir = t.TempDir()
	res, err := dl.Run(context.Background())
	assert.True(t, depot.IsSessionError(err))
	assert.Nil(t, res)
	assert.Empty(t, client.CallsOf(contenttest.OpDownload))
}
