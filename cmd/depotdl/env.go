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

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/cmd/depotdl/require"
	"github.com/depotdl/depotdl/pkg/action"
)

var envHelp = `
Env prints out all the environment information in use by depotdl.
`

const envOutputFlag string = "output"

func newEnvCmd(out io.Writer) *cobra.Command {
	outfmtEnv := keyValueENV
	cmd := &cobra.Command{
		Use:   "env [NAME]",
		Short: "depotdl client environment information",
		Long:  envHelp,
		Args:  require.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return getSortedEnvVarKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			envVars := settings.EnvVars()

			if len(args) == 0 {
				return outfmtEnv.WriteEnvs(out, envVars)
			}

			key := args[0]
			return outfmtEnv.WriteSingleEnv(out, key, envVars[key])
		},
	}

	cmd.Flags().VarP(&outfmtEnv, envOutputFlag, "o",
		fmt.Sprintf("prints the output in the specified format. Allowed values: %s", strings.Join(envFormats(), ", ")))

	return cmd
}

func getSortedEnvVarKeys() []string {
	envVars := settings.EnvVars()

	var keys []string
	for k := range envVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

type envFormat string

const (
	keyValueENV envFormat = "env"
	jsonENV     envFormat = "json"
	yamlENV     envFormat = "yaml"
)

func envFormats() []string {
	return []string{keyValueENV.String(), jsonENV.String(), yamlENV.String()}
}

func (o envFormat) String() string {
	return string(o)
}

func (o *envFormat) Set(s string) error {
	switch envFormat(s) {
	case keyValueENV, jsonENV, yamlENV:
		*o = envFormat(s)
		return nil
	}
	return action.ErrInvalidFormatType
}

func (o envFormat) Type() string {
	return "format"
}

func (o envFormat) encode(out io.Writer, v interface{}) error {
	f := action.JSON
	if o == yamlENV {
		f = action.YAML
	}
	return f.Write(out, v, nil)
}

func (o envFormat) WriteEnvs(out io.Writer, e map[string]string) error {
	if o != keyValueENV {
		return o.encode(out, e)
	}
	// Sorted, so that output is stable across calls.
	for _, k := range getSortedEnvVarKeys() {
		fmt.Fprintf(out, "%s=\"%s\"\n", k, e[k])
	}
	return nil
}

func (o envFormat) WriteSingleEnv(out io.Writer, key, value string) error {
	if o != keyValueENV {
		return o.encode(out, map[string]string{key: value})
	}
	fmt.Fprintf(out, "%s\n", value)
	return nil
}
