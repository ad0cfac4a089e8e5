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

// Package depotpath calculates filesystem paths to depotdl's configuration,
// cache and data.
package depotpath

const lp = lazypath("depotdl")

// ConfigPath returns the path where depotdl stores configuration.
func ConfigPath(elem ...string) string { return lp.configPath(elem...) }

// CachePath returns the path where depotdl stores cached objects.
func CachePath(elem ...string) string { return lp.cachePath(elem...) }

// DataPath returns the path where depotdl stores data.
func DataPath(elem ...string) string { return lp.dataPath(elem...) }

// DefinitionFile returns the default location of a tracked-line definition.
func DefinitionFile() string { return ConfigPath("definition.yaml") }
