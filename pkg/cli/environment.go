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
Package cli describes the operating environment for the depotdl CLI.

Settings come from DEPOTDL_* environment variables and can be overridden by
the persistent flags of the root command.
*/
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/depotpath"
	"github.com/depotdl/depotdl/pkg/tracking"
)

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// Debug indicates whether or not depotdl is running in Debug mode.
	Debug bool
	// ServiceURL is the base URL of the content service.
	ServiceURL string
	// CellID selects the region used to pick content servers. Negative
	// values mean any region.
	CellID int
	// MaxServers is the number of content servers considered per download.
	MaxServers int
	// MaxDownloads is the number of chunks fetched at once.
	MaxDownloads int
	// Retries is how many times a failed request to the service is retried.
	Retries int
	// Timeout bounds a single request to the service.
	Timeout time.Duration
	// BranchPassword unlocks password protected branches.
	BranchPassword string
	// Driver names the storage driver for version records.
	Driver string
	// MetadataDir is where the disk driver writes version records.
	MetadataDir string
	// Definition is the path to a tracked-line definition. Empty means the
	// file in the config home if present, else the built-in line.
	Definition string
}

// New returns settings initialized from the environment.
func New() *EnvSettings {
	env := &EnvSettings{
		ServiceURL:     os.Getenv("DEPOTDL_SERVICE_URL"),
		CellID:         envIntOr("DEPOTDL_CELL_ID", 0),
		MaxServers:     envIntOr("DEPOTDL_MAX_SERVERS", content.DefaultMaxServers),
		MaxDownloads:   envIntOr("DEPOTDL_MAX_DOWNLOADS", content.DefaultMaxDownloads),
		Retries:        envIntOr("DEPOTDL_RETRIES", content.DefaultRetries),
		Timeout:        envDurationOr("DEPOTDL_TIMEOUT", content.DefaultTimeout),
		BranchPassword: os.Getenv("DEPOTDL_BRANCH_PASSWORD"),
		Driver:         envOr("DEPOTDL_DRIVER", "disk"),
		MetadataDir:    envOr("DEPOTDL_METADATA_DIR", "."),
		Definition:     os.Getenv("DEPOTDL_DEFINITION"),
	}
	env.Debug, _ = strconv.ParseBool(os.Getenv("DEPOTDL_DEBUG"))
	return env
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
	fs.StringVar(&s.ServiceURL, "service-url", s.ServiceURL, "base URL of the content service")
	fs.StringVar(&s.Driver, "driver", s.Driver, "storage driver for version records: disk, memory or sql")
	fs.StringVar(&s.MetadataDir, "metadata-dir", s.MetadataDir, "directory version records are written to by the disk driver")
	fs.StringVar(&s.Definition, "definition", s.Definition, "path to a tracked application line definition (YAML or TOML)")
}

// AddTransferFlags binds the flags tuning downloads to the given flagset.
func (s *EnvSettings) AddTransferFlags(fs *pflag.FlagSet) {
	fs.IntVar(&s.CellID, "cellid", s.CellID, "region used to pick content servers")
	fs.IntVar(&s.MaxServers, "max-servers", s.MaxServers, "maximum number of content servers to use")
	fs.IntVar(&s.MaxDownloads, "max-downloads", s.MaxDownloads, "maximum number of chunks to download concurrently")
	fs.IntVar(&s.Retries, "retries", s.Retries, "number of times a failed request is retried")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "time to wait for a single request to the service")
	fs.StringVar(&s.BranchPassword, "branch-password", s.BranchPassword, "password of a protected branch")
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envDurationOr(name string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(envOr(name, def.String()))
	if err != nil {
		return def
	}
	return d
}

func envIntOr(name string, def int) int {
	if name == "" {
		return def
	}
	envVal := envOr(name, strconv.Itoa(def))
	ret, err := strconv.Atoi(envVal)
	if err != nil {
		return def
	}
	return ret
}

// EnvVars returns the effective settings keyed by environment variable.
func (s *EnvSettings) EnvVars() map[string]string {
	return map[string]string{
		"DEPOTDL_BIN":           os.Args[0],
		"DEPOTDL_CACHE_HOME":    depotpath.CachePath(""),
		"DEPOTDL_CONFIG_HOME":   depotpath.ConfigPath(""),
		"DEPOTDL_DATA_HOME":     depotpath.DataPath(""),
		"DEPOTDL_DEBUG":         fmt.Sprint(s.Debug),
		"DEPOTDL_SERVICE_URL":   s.ServiceURL,
		"DEPOTDL_CELL_ID":       strconv.Itoa(s.CellID),
		"DEPOTDL_MAX_SERVERS":   strconv.Itoa(s.MaxServers),
		"DEPOTDL_MAX_DOWNLOADS": strconv.Itoa(s.MaxDownloads),
		"DEPOTDL_RETRIES":       strconv.Itoa(s.Retries),
		"DEPOTDL_TIMEOUT":       s.Timeout.String(),
		"DEPOTDL_DRIVER":        s.Driver,
		"DEPOTDL_METADATA_DIR":  s.MetadataDir,
		"DEPOTDL_DEFINITION":    s.Definition,

		// read by the sql driver only
		"DEPOTDL_DRIVER_SQL_CONNECTION_STRING": os.Getenv("DEPOTDL_DRIVER_SQL_CONNECTION_STRING"),
	}
}

// ContentConfig returns the run configuration the settings describe.
func (s *EnvSettings) ContentConfig() content.Config {
	cfg := content.NewConfig()
	cfg.MaxServers = s.MaxServers
	cfg.MaxDownloads = s.MaxDownloads
	if s.CellID > 0 {
		cfg.CellID = uint32(s.CellID)
	}
	cfg.BranchPassword = s.BranchPassword
	cfg.Normalize()
	return cfg
}

// ClientOptions returns the options the content client is built with. The
// branch password is not listed by EnvVars.
func (s *EnvSettings) ClientOptions() []content.Option {
	opts := []content.Option{
		content.WithURL(s.ServiceURL),
		content.WithBranchPassword(s.BranchPassword),
	}
	if s.Retries >= 0 {
		opts = append(opts, content.WithRetries(uint64(s.Retries)))
	}
	if s.Timeout > 0 {
		opts = append(opts, content.WithTimeout(s.Timeout))
	}
	return opts
}

// LoadDefinition returns the tracked line to work on.
func (s *EnvSettings) LoadDefinition() (*tracking.Definition, error) {
	if s.Definition != "" {
		return tracking.Load(s.Definition)
	}
	if _, err := os.Stat(depotpath.DefinitionFile()); err == nil {
		return tracking.Load(depotpath.DefinitionFile())
	}
	return tracking.Default(), nil
}
