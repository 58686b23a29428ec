// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package db implements calendar date handling and gob file storage shared by
// the fetch and merge pipeline.
package db

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
)

// WriteGobFile gob-encodes v into fileName. The value is written to a
// temporary file first and renamed into place, so an existing file survives a
// failed write intact.
func WriteGobFile(fileName string, v interface{}) error {
	tmp, err := os.CreateTemp(filepath.Dir(fileName), filepath.Base(fileName)+".tmp*")
	if err != nil {
		return errors.Annotate(err, "failed to create temp file for '%s'", fileName)
	}
	defer os.Remove(tmp.Name())
	enc := gob.NewEncoder(tmp)
	if err = enc.Encode(v); err != nil {
		tmp.Close()
		return errors.Annotate(err, "failed to write to '%s'", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), fileName); err != nil {
		return errors.Annotate(err, "failed to rename '%s' to '%s'", tmp.Name(), fileName)
	}
	return nil
}

// ReadGobFile gob-decodes the contents of fileName into v.
func ReadGobFile(fileName string, v interface{}) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err = dec.Decode(v); err != nil {
		return errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return nil
}
