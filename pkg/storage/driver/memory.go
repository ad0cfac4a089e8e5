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
	"sort"
	"sync"
)

var _ Driver = (*Memory)(nil)

// MemoryDriverName is the string name of this driver.
const MemoryDriverName = "Memory"

// Memory is the in-memory storage driver implementation.
type Memory struct {
	sync.RWMutex
	cache map[string][]byte
}

// NewMemory initializes a new memory driver.
func NewMemory() *Memory {
	return &Memory{cache: map[string][]byte{}}
}

// Name returns the name of the driver.
func (mem *Memory) Name() string {
	return MemoryDriverName
}

// Create stores data under key unless key already exists.
func (mem *Memory) Create(key string, data []byte) error {
	if key == "" {
		return keyError(key, ErrInvalidKey)
	}
	defer unlock(mem.wlock())
	if _, ok := mem.cache[key]; ok {
		return keyError(key, ErrRecordExists)
	}
	mem.cache[key] = append([]byte(nil), data...)
	return nil
}

// Get returns the data stored under key.
func (mem *Memory) Get(key string) ([]byte, error) {
	defer unlock(mem.rlock())
	data, ok := mem.cache[key]
	if !ok {
		return nil, keyError(key, ErrRecordNotFound)
	}
	return append([]byte(nil), data...), nil
}

// List returns every stored key.
func (mem *Memory) List() ([]string, error) {
	defer unlock(mem.rlock())
	keys := make([]string, 0, len(mem.cache))
	for k := range mem.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// wlock locks mem for writing
func (mem *Memory) wlock() func() {
	mem.Lock()
	return func() { mem.Unlock() }
}

// rlock locks mem for reading
func (mem *Memory) rlock() func() {
	mem.RLock()
	return func() { mem.RUnlock() }
}

// unlock calls fn which reverses a mem.rlock or mem.wlock. e.g:
// ```defer unlock(mem.rlock())```, locks mem for reading at the
// call point of defer and unlocks upon exiting the block.
func unlock(fn func()) { fn() }
