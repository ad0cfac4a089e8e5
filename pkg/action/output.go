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

package action

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"sigs.k8s.io/yaml"
)

// OutputFormat is a type for capturing supported output formats
type OutputFormat string

// TableFunc is a function that can be used to add rows to a table
type TableFunc func(tbl *uitable.Table)

const (
	Table OutputFormat = "table"
	JSON  OutputFormat = "json"
	YAML  OutputFormat = "yaml"
)

// ErrInvalidFormatType is returned when an unsupported format type is used
var ErrInvalidFormatType = fmt.Errorf("invalid format type")

// String returns the string representation of the OutputFormat
func (o OutputFormat) String() string {
	return string(o)
}

// Formats returns the names of all supported formats.
func Formats() []string {
	return []string{Table.String(), JSON.String(), YAML.String()}
}

// Marshal uses the specified output format to marshal out the given data. It
// does not support tabular output. For tabular output, use MarshalTable
func (o OutputFormat) Marshal(data interface{}) (byt []byte, err error) {
	switch o {
	case YAML:
		byt, err = yaml.Marshal(data)
	case JSON:
		byt, err = json.MarshalIndent(data, "", "  ")
		if err == nil {
			byt = append(byt, '\n')
		}
	default:
		err = ErrInvalidFormatType
	}
	return
}

// MarshalTable returns a formatted table. Rows can be added to the table using
// the given TableFunc
func (o OutputFormat) MarshalTable(f TableFunc) ([]byte, error) {
	if o != Table {
		return nil, ErrInvalidFormatType
	}
	tbl := uitable.New()
	if f == nil {
		return []byte{}, nil
	}
	f(tbl)
	return append(tbl.Bytes(), '\n'), nil
}

// Write renders data in format o to out, using f for the table format.
func (o OutputFormat) Write(out io.Writer, data interface{}, f TableFunc) error {
	var (
		byt []byte
		err error
	)
	if o == Table {
		byt, err = o.MarshalTable(f)
	} else {
		byt, err = o.Marshal(data)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(byt)
	return err
}

// ParseOutputFormat takes a raw string and returns the matching OutputFormat.
// If the format does not exists, ErrInvalidFormatType is returned
func ParseOutputFormat(s string) (out OutputFormat, err error) {
	switch strings.ToLower(s) {
	case Table.String():
		out, err = Table, nil
	case JSON.String():
		out, err = JSON, nil
	case YAML.String():
		out, err = YAML, nil
	default:
		out, err = "", ErrInvalidFormatType
	}
	return
}
