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
Package tracking resolves the releases of a tracked application line.

A line is one content depot, whose marker file carries a human readable
version label, and three platform depots built alongside it. Tracking a
branch produces a VersionRecord holding the manifest of all four depots.
*/
package tracking

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/depotdl/depotdl/pkg/content"
)

// Sentinels shared with the content service client.
const (
	InvalidDepotID    = content.InvalidDepotID
	InvalidManifestID = content.InvalidManifestID
)

// Role is the part a depot plays in a tracked line.
type Role int

// Roles, in record order.
const (
	Content Role = iota
	Win32
	OSX
	Linux
)

// Roles lists every role in record order.
var Roles = []Role{Content, Win32, OSX, Linux}

// PlatformRoles lists the roles downloaded as runtimes.
var PlatformRoles = []Role{Win32, OSX, Linux}

func (r Role) String() string {
	switch r {
	case Content:
		return "Content"
	case Win32:
		return "Win32"
	case OSX:
		return "OSX"
	case Linux:
		return "Linux"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// DepotVersion is the manifest of one depot within a release. ManifestID is
// InvalidManifestID when the depot could not be resolved.
type DepotVersion struct {
	Role       Role
	DepotID    uint32
	ManifestID uint64
}

// Resolved reports whether the depot has a manifest for this release.
func (d DepotVersion) Resolved() bool {
	return d.ManifestID != InvalidManifestID
}

// VersionRecord is one labelled release of a tracked line on a branch.
type VersionRecord struct {
	AppID       uint32
	Version     string
	BuildNumber uint32
	Branch      string
	// Depots holds one entry per role, in Roles order.
	Depots []DepotVersion
}

// NewVersionRecord returns a record for d with every manifest unresolved.
func NewVersionRecord(d *Definition, branch, version string) *VersionRecord {
	r := &VersionRecord{
		AppID:   d.AppID,
		Version: version,
		Branch:  branch,
		Depots:  make([]DepotVersion, len(Roles)),
	}
	for i, role := range Roles {
		r.Depots[i] = DepotVersion{Role: role, DepotID: d.DepotID(role), ManifestID: InvalidManifestID}
	}
	return r
}

// Depot returns the entry of role.
func (r *VersionRecord) Depot(role Role) DepotVersion {
	for _, d := range r.Depots {
		if d.Role == role {
			return d
		}
	}
	return DepotVersion{Role: role, DepotID: InvalidDepotID, ManifestID: InvalidManifestID}
}

// Platforms returns the resolved platform entries; the others are skipped.
func (r *VersionRecord) Platforms() []DepotVersion {
	var out []DepotVersion
	for _, role := range PlatformRoles {
		if d := r.Depot(role); d.Resolved() {
			out = append(out, d)
		}
	}
	return out
}

type manifestBlock struct {
	ManifestID uint64 `json:"manifestId"`
}

// recordFile is the persisted form. Depot ids are fixed by the definition
// and not stored.
type recordFile struct {
	Version     string        `json:"version"`
	BuildNumber uint32        `json:"buildNumber"`
	Content     manifestBlock `json:"content"`
	Win32       manifestBlock `json:"win32"`
	OSX         manifestBlock `json:"osx"`
	Linux       manifestBlock `json:"linux"`
}

// Encode renders the record as YAML. Keys are emitted in a fixed order, so
// equal records encode to equal bytes.
func Encode(r *VersionRecord) ([]byte, error) {
	return yaml.Marshal(recordFile{
		Version:     r.Version,
		BuildNumber: r.BuildNumber,
		Content:     manifestBlock{r.Depot(Content).ManifestID},
		Win32:       manifestBlock{r.Depot(Win32).ManifestID},
		OSX:         manifestBlock{r.Depot(OSX).ManifestID},
		Linux:       manifestBlock{r.Depot(Linux).ManifestID},
	})
}

// Decode parses a record written by Encode. Depot ids come from d.
func Decode(d *Definition, data []byte) (*VersionRecord, error) {
	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unable to decode version record")
	}
	if f.Version == "" {
		return nil, errors.New("version record has no version")
	}
	r := NewVersionRecord(d, "", f.Version)
	r.BuildNumber = f.BuildNumber
	for i := range r.Depots {
		switch r.Depots[i].Role {
		case Content:
			r.Depots[i].ManifestID = f.Content.ManifestID
		case Win32:
			r.Depots[i].ManifestID = f.Win32.ManifestID
		case OSX:
			r.Depots[i].ManifestID = f.OSX.ManifestID
		case Linux:
			r.Depots[i].ManifestID = f.Linux.ManifestID
		}
	}
	return r, nil
}

// ValidateLabel rejects version labels that cannot name a file or directory.
func ValidateLabel(label string) error {
	switch {
	case label == "":
		return errors.New("empty version label")
	case label == "." || label == "..":
		return errors.Errorf("invalid version label %q", label)
	case strings.ContainsAny(label, `/\`):
		return errors.Errorf("version label %q contains a path separator", label)
	case strings.ContainsAny(label, "\x00\n\r"):
		return errors.Errorf("version label %q contains control characters", label)
	}
	return nil
}
