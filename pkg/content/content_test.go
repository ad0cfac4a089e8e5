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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigNormalize(t *testing.T) {
	c := NewConfig()
	c.MaxServers = 2
	c.MaxDownloads = 8
	c.Normalize()
	assert.Equal(t, 8, c.MaxServers)
	assert.Equal(t, 8, c.MaxDownloads)

	c = Config{}
	c.Normalize()
	assert.Equal(t, DefaultMaxServers, c.MaxServers)
	assert.Equal(t, DefaultMaxDownloads, c.MaxDownloads)
}

func TestNewConfigHasNoForcedManifest(t *testing.T) {
	assert.Equal(t, uint64(InvalidManifestID), NewConfig().ManifestID)
	assert.False(t, NewConfig().Files.Active())
}

func TestSentinelTypes(t *testing.T) {
	var app, depot uint32 = InvalidAppID, InvalidDepotID
	var manifest uint64 = InvalidManifestID
	assert.Equal(t, uint32(math.MaxUint32), app)
	assert.Equal(t, uint32(math.MaxUint32), depot)
	assert.Equal(t, uint64(math.MaxUint64), manifest)

	assert.False(t, ManifestForced(InvalidManifestID))
	assert.False(t, ManifestForced(0))
	assert.True(t, ManifestForced(math.MaxUint64-1))
}

func TestCredentialsAnonymous(t *testing.T) {
	assert.True(t, Credentials{}.Anonymous())
	assert.False(t, Credentials{Username: "gaben"}.Anonymous())
}

func TestConfigForcedManifest(t *testing.T) {
	c := NewConfig()
	_, forced := c.ForcedManifest()
	assert.False(t, forced)

	c.ManifestID = 0
	_, forced = c.ForcedManifest()
	assert.False(t, forced)

	c.ManifestID = 2971217845583775832
	id, forced := c.ForcedManifest()
	assert.True(t, forced)
	assert.Equal(t, uint64(2971217845583775832), id)
}
