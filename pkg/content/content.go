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

/*
Package content describes the content distribution service depotdl talks to.

The Client interface is the contract between the orchestration code and the
collaborator that owns authentication, chunk transfer, decryption and
verification. HTTPClient is the bundled implementation; tests use the fake in
package contenttest.
*/
package content

import (
	"context"
	"math"

	"github.com/depotdl/depotdl/pkg/filter"
)

const (
	// InvalidAppID marks an application id that was not supplied.
	InvalidAppID uint32 = math.MaxUint32
	// InvalidDepotID marks a depot id that was not supplied.
	InvalidDepotID uint32 = math.MaxUint32
	// InvalidManifestID marks a manifest id that is unknown or not forced.
	InvalidManifestID uint64 = math.MaxUint64

	// DefaultBranch is the branch every application publishes.
	DefaultBranch = "Public"
)

// Credentials authenticate a session. An empty Username logs in anonymously.
type Credentials struct {
	Username string
	Password string
}

// Anonymous reports whether no account was given.
func (c Credentials) Anonymous() bool {
	return c.Username == ""
}

// Config is the configuration of a single download request. It is built once
// per run and copied, never shared, into each request.
type Config struct {
	// InstallDirectory is where downloaded files are written.
	InstallDirectory string
	// DownloadManifestOnly writes a human readable manifest instead of files.
	DownloadManifestOnly bool
	// DownloadAllPlatforms includes depots for every operating system.
	DownloadAllPlatforms bool
	// VerifyAll checksums files already on disk instead of trusting them.
	VerifyAll bool
	// Files restricts the download to matching file names.
	Files filter.List
	// MaxServers bounds the content servers considered.
	MaxServers int
	// MaxDownloads bounds concurrent chunk transfers.
	MaxDownloads int
	// CellID selects the content server region. Zero lets the service pick.
	CellID uint32
	// BranchPassword unlocks password protected branches.
	BranchPassword string
	// ManifestID downloads this manifest instead of resolving the current one.
	ManifestID uint64
}

const (
	// DefaultMaxServers is the default number of content servers considered.
	DefaultMaxServers = 20
	// DefaultMaxDownloads is the default number of concurrent chunk transfers.
	DefaultMaxDownloads = 4
)

// NewConfig returns a Config with the default limits and no forced manifest.
func NewConfig() Config {
	return Config{
		MaxServers:   DefaultMaxServers,
		MaxDownloads: DefaultMaxDownloads,
		ManifestID:   InvalidManifestID,
	}
}

// Normalize raises MaxServers to at least MaxDownloads and fills zero limits.
func (c *Config) Normalize() {
	if c.MaxDownloads <= 0 {
		c.MaxDownloads = DefaultMaxDownloads
	}
	if c.MaxServers <= 0 {
		c.MaxServers = DefaultMaxServers
	}
	if c.MaxServers < c.MaxDownloads {
		c.MaxServers = c.MaxDownloads
	}
}

// ManifestForced reports whether id names a specific manifest. Zero is never
// a valid manifest id and, like InvalidManifestID, means the current one.
func ManifestForced(id uint64) bool {
	return id != InvalidManifestID && id != 0
}

// ForcedManifest returns the manifest id to download instead of the current
// one, if any.
func (c Config) ForcedManifest() (uint64, bool) {
	if !ManifestForced(c.ManifestID) {
		return 0, false
	}
	return c.ManifestID, true
}

// Request is one blocking download of an application's depot.
type Request struct {
	AppID   uint32
	DepotID uint32
	Branch  string
	// ForceDepot skips the ownership check normally done before download.
	ForceDepot bool
	Config     Config
}

// Client is a session against the content service.
//
// Connect and Disconnect bracket every other call. BuildNumber and ManifestID
// answer for the branch as it is now; Download blocks until the request has
// completed or failed.
type Client interface {
	Connect(ctx context.Context, creds Credentials) error
	Disconnect() error
	BuildNumber(ctx context.Context, appID uint32, branch string) (uint32, error)
	ManifestID(ctx context.Context, depotID, appID uint32, branch string) (uint64, error)
	Download(ctx context.Context, req Request) error
}
