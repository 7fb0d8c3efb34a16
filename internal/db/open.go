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
	"os"
	"path/filepath"
	"strings"

	"github.com/antst/otrvhub/internal/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    addr   INTEGER PRIMARY KEY,
    value  INTEGER NOT NULL,
    writes INTEGER NOT NULL DEFAULT 1
);
`

func expandHome(dbFile string) string {
	if !strings.HasPrefix(dbFile, "~/") {
		return dbFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dbFile
	}
	return filepath.Join(home, dbFile[2:])
}

// OpenDatabase opens (creating if needed) the settings database and loads it.
func OpenDatabase(dbFile string) (*ByteStore, error) {
	dbFile = expandHome(dbFile)
	sqlDB, err := sqlx.Open("sqlite3", dbFile)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dbFile)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errors.Wrapf(err, "ping %s", dbFile)
	}

	// a single connection keeps ":memory:" databases shared and serialises writers
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	s, err := newByteStore(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	logger.L().Infof("Opened settings DB `%v`, %d stored bytes", dbFile, s.stored())
	return s, nil
}
