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

package depotpath

import (
	"os"
	"path/filepath"

	"github.com/depotdl/depotdl/pkg/depotpath/xdg"
)

const (
	// CacheHomeEnvVar is the environment variable used by depotdl
	// for the cache directory. When no value is set a default is used.
	CacheHomeEnvVar = "DEPOTDL_CACHE_HOME"

	// ConfigHomeEnvVar is the environment variable used by depotdl
	// for the config directory. When no value is set a default is used.
	ConfigHomeEnvVar = "DEPOTDL_CONFIG_HOME"

	// DataHomeEnvVar is the environment variable used by depotdl
	// for the data directory. When no value is set a default is used.
	DataHomeEnvVar = "DEPOTDL_DATA_HOME"
)

// lazypath resolves a directory for the XDG base directory layout on demand,
// so environment changes made after start-up are honored.
type lazypath string

func (l lazypath) path(envVar, xdgEnvVar string, defaultFn func() string, elem ...string) string {
	// 1. a depotdl specific variable wins and is used without the "depotdl" suffix
	// 2. then the XDG variable
	// 3. then the platform default
	base := os.Getenv(envVar)
	if base != "" {
		return filepath.Join(base, filepath.Join(elem...))
	}
	base = os.Getenv(xdgEnvVar)
	if base == "" {
		base = defaultFn()
	}
	return filepath.Join(base, string(l), filepath.Join(elem...))
}

func (l lazypath) cachePath(elem ...string) string {
	return l.path(CacheHomeEnvVar, xdg.CacheHomeEnvVar, cacheHome, filepath.Join(elem...))
}

func (l lazypath) configPath(elem ...string) string {
	return l.path(ConfigHomeEnvVar, xdg.ConfigHomeEnvVar, configHome, filepath.Join(elem...))
}

func (l lazypath) dataPath(elem ...string) string {
	return l.path(DataHomeEnvVar, xdg.DataHomeEnvVar, dataHome, filepath.Join(elem...))
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.TempDir()
}
