/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of OTRVHUB project.
 *
 * OTRVHUB is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package db

import (
	"sync"

	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type settingRow struct {
	Addr   int64 `db:"addr"`
	Value  int64 `db:"value"`
	Writes int64 `db:"writes"`
}

// ByteStore is an nvstore.Store kept in SQLite. Reads are served from memory; writes go
// through to the database only when the value changes.
type ByteStore struct {
	mu    sync.Mutex
	db    *sqlx.DB
	cache [nvstore.Size]byte
}

func newByteStore(db *sqlx.DB) (*ByteStore, error) {
	s := &ByteStore{db: db}
	for i := range s.cache {
		s.cache[i] = nvstore.Unset
	}

	var rows []settingRow
	if err := db.Select(&rows, `SELECT addr, value, writes FROM settings`); err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	for _, r := range rows {
		if r.Addr < 0 || r.Addr >= nvstore.Size {
			logger.L().Warnf("Ignoring stored setting at bad address %d", r.Addr)
			continue
		}
		s.cache[r.Addr] = byte(r.Value)
	}
	return s, nil
}

func (s *ByteStore) Get(addr nvstore.Addr) byte {
	if int(addr) >= nvstore.Size {
		return nvstore.Unset
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[addr]
}

func (s *ByteStore) Update(addr nvstore.Addr, v byte) error {
	if int(addr) >= nvstore.Size {
		return nvstore.ErrBadAddr(addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache[addr] == v {
		return nil
	}

	var err error
	if v == nvstore.Unset {
		_, err = s.db.Exec(`DELETE FROM settings WHERE addr = ?`, addr)
	} else {
		_, err = s.db.Exec(
			`INSERT INTO settings (addr, value) VALUES (?, ?)
             ON CONFLICT(addr) DO UPDATE SET value = excluded.value, writes = writes + 1`,
			addr, v,
		)
	}
	if err != nil {
		return errors.Wrapf(err, "write setting %d", addr)
	}
	s.cache[addr] = v
	return nil
}

func (s *ByteStore) Erase(addr nvstore.Addr) error {
	return s.Update(addr, nvstore.Unset)
}

// Writes returns how many times addr has been written since it was last erased.
func (s *ByteStore) Writes(addr nvstore.Addr) (int64, error) {
	var n int64
	err := s.db.Get(&n, `SELECT writes FROM settings WHERE addr = ?`, addr)
	if err != nil {
		return 0, errors.Wrapf(err, "read write count %d", addr)
	}
	return n, nil
}

func (s *ByteStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.cache {
		if b != nvstore.Unset {
			n++
		}
	}
	return n
}

func (s *ByteStore) Close() error {
	return s.db.Close()
}
