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
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

//go:embed schema.json
var definitionSchema []byte

// Definition describes one tracked application line: a content depot whose
// marker file names the release, and the platform depots built from it.
type Definition struct {
	// Name prefixes every directory and metadata file of the line.
	Name         string `json:"name"`
	AppID        uint32 `json:"appId"`
	ContentDepot uint32 `json:"contentDepot"`
	// Marker is the path, inside the content depot, of the file holding the
	// version label.
	Marker   string   `json:"marker"`
	Win32    uint32   `json:"win32"`
	OSX      uint32   `json:"osx"`
	Linux    uint32   `json:"linux"`
	Branches []string `json:"branches,omitempty"`
	Legacy   *Legacy  `json:"legacy,omitempty"`
}

// Legacy is a fixed list of historical releases of a single depot.
type Legacy struct {
	Platform string          `json:"platform"`
	DepotID  uint32          `json:"depotId"`
	Releases []LegacyRelease `json:"releases"`
}

// LegacyRelease pins a label to a manifest.
type LegacyRelease struct {
	Label      string `json:"label"`
	ManifestID uint64 `json:"manifestId"`
}

var builtin = Definition{
	Name:         "steamvr",
	AppID:        250820,
	ContentDepot: 250824,
	Marker:       "bin/version.txt",
	Win32:        250821,
	OSX:          250822,
	Linux:        250823,
	Branches:     []string{"Public", "beta"},
	Legacy: &Legacy{
		Platform: "win32",
		DepotID:  250821,
		Releases: []LegacyRelease{
			{"v1459383055", 2971217845583775832},
			{"v1459268357", 6412586717092468451},
			{"v1459194224", 8469047631146748620},
			{"v1457503340", 6231830579612283653},
			{"v1457155403", 4081350190006495576},
			{"v1457146742", 986788611431053423},
			{"v1456973056", 2616796628530172164},
		},
	},
}

// Default returns a private copy of the built-in definition.
func Default() *Definition {
	c, err := copystructure.Copy(builtin)
	if err != nil {
		// the built-in value only holds plain data
		panic(err)
	}
	d := c.(Definition)
	return &d
}

// DepotID returns the depot tracked in role.
func (d *Definition) DepotID(role Role) uint32 {
	switch role {
	case Content:
		return d.ContentDepot
	case Win32:
		return d.Win32
	case OSX:
		return d.OSX
	case Linux:
		return d.Linux
	}
	return InvalidDepotID
}

// LiveBranches returns the branches tracked when none are requested.
func (d *Definition) LiveBranches() []string {
	if len(d.Branches) == 0 {
		return []string{"Public"}
	}
	return d.Branches
}

// Load reads a definition from a YAML, JSON or TOML file, chosen by
// extension, and validates it.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read definition")
	}
	var doc []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		doc, err = tomlToJSON(data)
	default:
		doc, err = yaml.YAMLToJSON(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse definition %s", path)
	}
	d, err := Parse(doc)
	return d, errors.Wrapf(err, "invalid definition %s", path)
}

// Parse validates a JSON definition and decodes it.
func Parse(doc []byte) (*Definition, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	d := &Definition{}
	if err := json.Unmarshal(doc, d); err != nil {
		return nil, err
	}
	if d.Legacy != nil && d.Legacy.DepotID == 0 {
		d.Legacy.DepotID = d.Win32
	}
	return d, nil
}

func tomlToJSON(data []byte) ([]byte, error) {
	var m map[string]interface{}
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func validate(doc []byte) (reterr error) {
	defer func() {
		if r := recover(); r != nil {
			reterr = fmt.Errorf("unable to validate schema: %s", r)
		}
	}()

	if bytes.Equal(bytes.TrimSpace(doc), []byte("null")) {
		doc = []byte("{}")
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(definitionSchema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, desc := range result.Errors() {
			sb.WriteString(fmt.Sprintf("- %s\n", desc))
		}
		return errors.New(sb.String())
	}
	return nil
}
