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

// Package xdg names the environment variables of the XDG base directory layout.
package xdg

const (
	// CacheHomeEnvVar overrides the cache base directory.
	CacheHomeEnvVar = "XDG_CACHE_HOME"

	// ConfigHomeEnvVar overrides the configuration base directory.
	ConfigHomeEnvVar = "XDG_CONFIG_HOME"

	// DataHomeEnvVar overrides the data base directory.
	DataHomeEnvVar = "XDG_DATA_HOME"
)
