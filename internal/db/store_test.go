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
	"testing"

	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteStoreInMemory(t *testing.T) {
	s, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, nvstore.Unset, s.Get(nvstore.AddrFrostC))

	require.NoError(t, s.Update(nvstore.AddrFrostC, 7))
	require.NoError(t, s.Update(nvstore.AddrFrostC, 7))
	assert.Equal(t, byte(7), s.Get(nvstore.AddrFrostC))

	n, err := s.Writes(nvstore.AddrFrostC)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Update(nvstore.AddrFrostC, 8))
	n, err = s.Writes(nvstore.AddrFrostC)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Erase(nvstore.AddrFrostC))
	assert.Equal(t, nvstore.Unset, s.Get(nvstore.AddrFrostC))
	_, err = s.Writes(nvstore.AddrFrostC)
	assert.Error(t, err)

	assert.Error(t, s.Update(nvstore.Size, 1))
}

func TestByteStoreSurvivesReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "settings.db")

	s, err := OpenDatabase(file)
	require.NoError(t, err)
	require.NoError(t, s.Update(nvstore.AddrWarmC, 20))
	require.NoError(t, nvstore.UpdateInverted(s, nvstore.AddrOverrunCounterInv, 3))
	require.NoError(t, s.Close())

	s, err = OpenDatabase(file)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, byte(20), s.Get(nvstore.AddrWarmC))
	assert.Equal(t, byte(3), nvstore.GetInverted(s, nvstore.AddrOverrunCounterInv))
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/var/lib/x.db", expandHome("/var/lib/x.db"))
	if home, err := os.UserHomeDir(); err == nil {
		assert.Equal(t, filepath.Join(home, "x.db"), expandHome("~/x.db"))
	}
}
