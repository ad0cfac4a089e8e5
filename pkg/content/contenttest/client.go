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

// Package contenttest provides a scriptable content.Client for tests.
package contenttest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/depotdl/depotdl/pkg/content"
)

// Operation names recorded in Call.Op.
const (
	OpConnect     = "connect"
	OpDisconnect  = "disconnect"
	OpBuildNumber = "build"
	OpManifestID  = "manifest"
	OpDownload    = "download"
)

// ErrNotConnected is returned for calls made outside a session.
var ErrNotConnected = errors.New("contenttest: not connected")

// DepotBranch keys manifest ids.
type DepotBranch struct {
	DepotID uint32
	Branch  string
}

// Call is one recorded call.
type Call struct {
	Op         string
	AppID      uint32
	DepotID    uint32
	Branch     string
	ManifestID uint64
	ForceDepot bool
	Dir        string
	Err        error
}

// Client is an in-memory content.Client. Zero value is usable; fill the maps
// to script answers.
type Client struct {
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// Builds maps a branch to its build number.
	Builds map[string]uint32
	// Manifests maps a depot on a branch to its current manifest.
	Manifests map[DepotBranch]uint64
	// Files holds, per depot, file names and contents written by Download.
	Files map[uint32]map[string]string
	// DownloadErr decides the outcome of a download before any file is written.
	DownloadErr func(req content.Request) error

	mu        sync.Mutex
	connected bool
	creds     content.Credentials
	calls     []Call
}

var _ content.Client = (*Client)(nil)

// Connect opens the fake session.
func (c *Client) Connect(_ context.Context, creds content.Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Call{Op: OpConnect, Err: c.ConnectErr})
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	c.creds = creds
	return nil
}

// Disconnect closes the fake session.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Call{Op: OpDisconnect})
	c.connected = false
	return nil
}

// BuildNumber answers from Builds.
func (c *Client) BuildNumber(_ context.Context, appID uint32, branch string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := Call{Op: OpBuildNumber, AppID: appID, Branch: branch}
	if !c.connected {
		call.Err = ErrNotConnected
		c.record(call)
		return 0, ErrNotConnected
	}
	b, ok := c.Builds[branch]
	if !ok {
		call.Err = errors.Errorf("branch %q not found for app %d", branch, appID)
		c.record(call)
		return 0, call.Err
	}
	c.record(call)
	return b, nil
}

// ManifestID answers from Manifests.
func (c *Client) ManifestID(_ context.Context, depotID, appID uint32, branch string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := Call{Op: OpManifestID, AppID: appID, DepotID: depotID, Branch: branch}
	if !c.connected {
		call.Err = ErrNotConnected
		c.record(call)
		return content.InvalidManifestID, ErrNotConnected
	}
	m, ok := c.Manifests[DepotBranch{depotID, branch}]
	if !ok {
		call.Err = errors.Errorf("depot %d has no manifest on branch %q", depotID, branch)
		c.record(call)
		return content.InvalidManifestID, call.Err
	}
	call.ManifestID = m
	c.record(call)
	return m, nil
}

// Download writes the scripted files of the depot that pass the filter.
func (c *Client) Download(_ context.Context, req content.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := Call{
		Op:         OpDownload,
		AppID:      req.AppID,
		DepotID:    req.DepotID,
		Branch:     req.Branch,
		ManifestID: req.Config.ManifestID,
		ForceDepot: req.ForceDepot,
		Dir:        req.Config.InstallDirectory,
	}
	if !c.connected {
		call.Err = ErrNotConnected
	} else if c.DownloadErr != nil {
		call.Err = c.DownloadErr(req)
	}
	if call.Err == nil {
		call.Err = c.writeFiles(req)
	}
	c.record(call)
	return call.Err
}

func (c *Client) writeFiles(req content.Request) error {
	for name, data := range c.Files[req.DepotID] {
		if !req.Config.Files.Match(name) {
			continue
		}
		dst := filepath.Join(req.Config.InstallDirectory, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, []byte(data), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) record(call Call) {
	c.calls = append(c.calls, call)
}

// Calls returns a copy of every recorded call in order.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsOf returns the recorded calls of one operation.
func (c *Client) CallsOf(op string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Credentials returns the credentials of the last successful Connect.
func (c *Client) Credentials() content.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}
