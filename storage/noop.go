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

package storage

import (
	"context"
)

// Noop is a Storage that forgets everything.
type Noop struct {
}

func NewNoop() *Noop {
	return &Noop{}
}

func (s *Noop) Open(ctx context.Context) error {
	return nil
}

func (s *Noop) Close(ctx context.Context) error {
	return nil
}

func (s *Noop) Put(ctx context.Context, r *Record) error {
	return Prepare(r)
}

func (s *Noop) Get(ctx context.Context, kb, id string) (*Record, error) {
	return nil, ErrNotFound
}

func (s *Noop) List(ctx context.Context, kb string, limit int) ([]*Record, error) {
	return nil, nil
}
