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

// Package bolt is a storage.Storage backed by a bbolt file.
//
// Each KB gets a bucket.  Keys are record IDs, which are ULIDs, so a
// cursor walks a bucket in chronological order.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Comcast/sage/storage"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// NotOpen is returned when the Storage hasn't been opened.
var NotOpen = errors.New("storage not open")

type Storage struct {
	Debug  bool
	Logger *zap.Logger

	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	if filename == "" {
		return nil, errors.New("no filename")
	}
	return &Storage{
		filename: filename,
		Logger:   zap.NewNop(),
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) logf(msg string, fields ...zap.Field) {
	if s.Debug && s.Logger != nil {
		s.Logger.Debug("bolt storage "+msg, fields...)
	}
}

func (s *Storage) Put(ctx context.Context, r *storage.Record) error {
	if s.db == nil {
		return NotOpen
	}
	if err := storage.Prepare(r); err != nil {
		return err
	}
	s.logf("put", zap.String("kb", r.KB), zap.String("id", r.ID))

	js, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(r.KB))
		if err != nil {
			return err
		}
		return b.Put([]byte(r.ID), js)
	})
}

func (s *Storage) Get(ctx context.Context, kb, id string) (*storage.Record, error) {
	if s.db == nil {
		return nil, NotOpen
	}
	s.logf("get", zap.String("kb", kb), zap.String("id", id))

	var r *storage.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kb))
		if b == nil {
			return nil
		}
		bs := b.Get([]byte(id))
		if bs == nil {
			return nil
		}
		r = &storage.Record{}
		return json.Unmarshal(bs, r)
	})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%s/%s: %w", kb, id, storage.ErrNotFound)
	}
	return r, nil
}

func (s *Storage) List(ctx context.Context, kb string, limit int) ([]*storage.Record, error) {
	if s.db == nil {
		return nil, NotOpen
	}

	rs := make([]*storage.Record, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kb))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			if 0 < limit && limit <= len(rs) {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var r storage.Record
			if err := json.Unmarshal(bs, &r); err != nil {
				return fmt.Errorf("record %s: %w", id, err)
			}
			rs = append(rs, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("list", zap.String("kb", kb), zap.Int("found", len(rs)))

	return rs, nil
}
