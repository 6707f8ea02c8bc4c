/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"encoding/json"
	"os"

	"github.com/Comcast/sage/core"
)

// JSONStore is a primitive facility to dump working memory as JSON in
// a file.
//
// Not glamorous or efficient.
type JSONStore struct {
	// StateOutputFilename, if not empty, will be the filename
	// for writing state as JSON.
	StateOutputFilename string
}

// Update writes every fact in the store as JSON.  Does nothing if
// there's no StateOutputFilename.
func (s *JSONStore) Update(store *core.Store) error {
	if s.StateOutputFilename == "" {
		return nil
	}
	js, err := json.MarshalIndent(store.Facts(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.StateOutputFilename, js, 0644)
}
