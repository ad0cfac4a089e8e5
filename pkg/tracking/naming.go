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

package tracking

import (
	"path/filepath"
)

// RecordName is the canonical metadata file name of a version.
func (d *Definition) RecordName(version string) string {
	return d.Name + "-" + version + ".yaml"
}

// AliasName is the metadata file name of a version seen on branch.
func (d *Definition) AliasName(version, branch string) string {
	return d.Name + "-" + version + "." + branch + ".yaml"
}

// ReleaseDir is the directory holding every platform of a version.
func (d *Definition) ReleaseDir(version string) string {
	return d.Name + "-" + version
}

// PlatformDir is the directory a platform of a version downloads into.
func (d *Definition) PlatformDir(version string, role Role) string {
	return filepath.Join(d.ReleaseDir(version), role.String())
}

// LegacyDir is the directory a historical release downloads into.
func (d *Definition) LegacyDir(label string) string {
	platform := "win32"
	if d.Legacy != nil && d.Legacy.Platform != "" {
		platform = d.Legacy.Platform
	}
	return d.Name + "-" + platform + "-" + label
}

// WorkDir is the scratch directory the version marker downloads into.
func (d *Definition) WorkDir() string {
	return d.Name + "-work"
}
