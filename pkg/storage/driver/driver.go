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

package driver // import "github.com/depotdl/depotdl/pkg/storage/driver"

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRecordNotFound indicates that a version record is not found.
	ErrRecordNotFound = errors.New("record: not found")
	// ErrRecordExists indicates that a version record already exists.
	ErrRecordExists = errors.New("record: already exists")
	// ErrInvalidKey indicates that a key cannot name a record.
	ErrInvalidKey = errors.New("record: invalid key")
)

// StorageDriverError records an error and the key that caused it.
type StorageDriverError struct {
	Key string
	Err error
}

func (e *StorageDriverError) Error() string {
	return fmt.Sprintf("%q %s", e.Key, e.Err.Error())
}

func (e *StorageDriverError) Unwrap() error { return e.Err }

func keyError(key string, err error) error {
	return &StorageDriverError{Key: key, Err: err}
}

// Creator is the interface that wraps the Create method.
//
// Create stores data under key or returns ErrRecordExists if key is already
// taken. Existing data is never modified.
type Creator interface {
	Create(key string, data []byte) error
}

// Queryor is the interface that wraps the Get and List methods.
//
// Get returns the data stored under key or ErrRecordNotFound.
//
// List returns every stored key in lexical order.
type Queryor interface {
	Get(key string) ([]byte, error)
	List() ([]string, error)
}

// Driver is the interface composed of Creator and Queryor. Records are
// create-only: there is no update or delete.
type Driver interface {
	Creator
	Queryor
	Name() string
}
