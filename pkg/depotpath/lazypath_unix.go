//go:build !windows

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

import "path/filepath"

// dataHome is $HOME/.local/share when $XDG_DATA_HOME is unset.
func dataHome() string {
	return filepath.Join(homeDir(), ".local", "share")
}

// configHome is $HOME/.config when $XDG_CONFIG_HOME is unset.
func configHome() string {
	return filepath.Join(homeDir(), ".config")
}

// cacheHome is $HOME/.cache when $XDG_CACHE_HOME is unset.
func cacheHome() string {
	return filepath.Join(homeDir(), ".cache")
}
