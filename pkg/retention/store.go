// Copyright 2025 PIR2Motion Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retention

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/recorder"
)

type File struct {
	Name    string
	Path    string
	Created time.Time
}

// Store is the save directory as seen by cleanup
type Store interface {
	List() ([]File, error)
	Remove(f File) error
}

// LocalStore lists recordings in a directory on the local filesystem
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// List returns the *.mkv files in the directory, not recursing
func (s *LocalStore) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.ErrListFailed(s.dir, err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match("*"+recorder.FileExtension, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed while listing
				continue
			}
			return nil, errors.ErrListFailed(s.dir, err)
		}

		p := filepath.Join(s.dir, e.Name())
		files = append(files, File{
			Name:    e.Name(),
			Path:    p,
			Created: creationTime(p, info),
		})
	}
	return files, nil
}

func (s *LocalStore) Remove(f File) error {
	if err := os.Remove(f.Path); err != nil {
		return errors.ErrDeleteFailed(f.Path, err)
	}
	return nil
}
