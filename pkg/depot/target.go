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

package depot

import (
	"fmt"

	"github.com/depotdl/depotdl/pkg/content"
)

// Sentinels re-exported for callers that only deal with targets.
const (
	InvalidAppID      = content.InvalidAppID
	InvalidDepotID    = content.InvalidDepotID
	InvalidManifestID = content.InvalidManifestID
)

// Target is one requested download.
type Target struct {
	AppID   uint32
	DepotID uint32
	// ManifestID, when neither zero nor InvalidManifestID, forces this
	// manifest instead of the one current on Branch.
	ManifestID uint64
	Branch     string
	// ForceDepot bypasses the ownership check before download.
	ForceDepot bool
}

// NewTarget returns a target for the whole application on the default branch.
func NewTarget(appID uint32) Target {
	return Target{
		AppID:      appID,
		DepotID:    InvalidDepotID,
		ManifestID: InvalidManifestID,
		Branch:     content.DefaultBranch,
	}
}

// Validate rejects targets that can never be downloaded.
func (t Target) Validate() error {
	if t.AppID == InvalidAppID {
		return &ConfigurationError{Reason: "--app not specified"}
	}
	if t.DepotID == InvalidDepotID && content.ManifestForced(t.ManifestID) {
		return &ConfigurationError{Reason: "--manifest requires --depot to be specified"}
	}
	return nil
}

// Forced returns the forced manifest id, if any.
func (t Target) Forced() (uint64, bool) {
	return t.ManifestID, content.ManifestForced(t.ManifestID)
}

// BranchOrDefault returns Branch, or the default branch when empty.
func (t Target) BranchOrDefault() string {
	if t.Branch == "" {
		return content.DefaultBranch
	}
	return t.Branch
}

func (t Target) String() string {
	s := fmt.Sprintf("app %d", t.AppID)
	if t.DepotID != InvalidDepotID {
		s += fmt.Sprintf(" depot %d", t.DepotID)
	}
	if id, ok := t.Forced(); ok {
		s += fmt.Sprintf(" manifest %d", id)
	} else {
		s += fmt.Sprintf(" branch %s", t.BranchOrDefault())
	}
	return s
}

// Request builds the download request for this target with a copy of cfg.
// The forced manifest of the target always replaces the one in cfg.
func (t Target) Request(cfg content.Config, dir string) content.Request {
	cfg.InstallDirectory = dir
	cfg.ManifestID = t.ManifestID
	return content.Request{
		AppID:      t.AppID,
		DepotID:    t.DepotID,
		Branch:     t.BranchOrDefault(),
		ForceDepot: t.ForceDepot,
		Config:     cfg,
	}
}
