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

package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"

	"github.com/depotdl/depotdl/internal/fileutil"
)

var _ Driver = (*Disk)(nil)

// DiskDriverName is the string name of this driver.
const DiskDriverName = "Disk"

// Disk stores each record as one file named after its key.
type Disk struct {
	dir string
	Log func(string, ...interface{})
}

// NewDisk initializes a new Disk driver rooted at dir.
func NewDisk(dir string) (*Disk, error) {
	disk := &Disk{dir: dir, Log: func(_ string, _ ...interface{}) {}}
	if err := os.MkdirAll(disk.dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "unable to create metadata directory %s", dir)
	}
	return disk, nil
}

// Name returns the name of the driver.
func (disk *Disk) Name() string {
	return DiskDriverName
}

// Dir returns the directory records are written to.
func (disk *Disk) Dir() string {
	return disk.dir
}

func (disk *Disk) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) {
		return "", keyError(key, ErrInvalidKey)
	}
	return securejoin.SecureJoin(disk.dir, key)
}

// Create writes key unless a file of that name already exists. A concurrent
// writer racing on the same key either wins or gets ErrRecordExists.
func (disk *Disk) Create(key string, data []byte) error {
	p, err := disk.path(key)
	if err != nil {
		return err
	}
	err = fileutil.CreateNewFile(p, bytes.NewReader(data), 0644)
	if os.IsExist(err) {
		disk.Log("%s already exists", p)
		return keyError(key, ErrRecordExists)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", p)
	}
	disk.Log("wrote %s", p)
	return nil
}

// Get reads the file of key.
func (disk *Disk) Get(key string) ([]byte, error) {
	p, err := disk.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, keyError(key, ErrRecordNotFound)
	}
	return data, errors.Wrapf(err, "unable to read %s", p)
}

// List returns the names of the record files in the directory.
func (disk *Disk) List() ([]string, error) {
	entries, err := os.ReadDir(disk.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list files in %s", disk.dir)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}
