// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

// Package tablestore is the default on-disk TableStore collaborator (spec
// §1/§6): a single goleveldb database backing every sub-table storage.go,
// routespec.go and their test suites open by (table, key) name, key
// namespaced internally as "table\x00key" so one physical database serves
// every caller.
package tablestore

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a goleveldb-backed TableStore. It satisfies both
// storage.TableStore and routespec.TableStore (identical Put/Get shape)
// without importing either — both were designed as narrow collaborator
// interfaces a caller supplies, per spec §1's external-persistence split.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func namespacedKey(table, key string) []byte {
	out := make([]byte, 0, len(table)+1+len(key))
	out = append(out, table...)
	out = append(out, 0)
	out = append(out, key...)
	return out
}

// Put writes value under (table, key), overwriting any prior value.
func (s *Store) Put(table, key string, value []byte) error {
	return s.db.Put(namespacedKey(table, key), value, nil)
}

// Get reads (table, key); ok is false (with a nil error) if absent.
func (s *Store) Get(table, key string) ([]byte, bool, error) {
	value, err := s.db.Get(namespacedKey(table, key), nil)
	if err == errors.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes (table, key), if present.
func (s *Store) Delete(table, key string) error {
	return s.db.Delete(namespacedKey(table, key), nil)
}

// IterateTable calls fn for every key currently stored under table, in
// key order; fn returning false stops the iteration early.
func (s *Store) IterateTable(table string, fn func(key string, value []byte) bool) error {
	prefix := append([]byte(table), 0)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(string(iter.Key()[len(prefix):]), append([]byte(nil), iter.Value()...)) {
			break
		}
	}
	return iter.Error()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
