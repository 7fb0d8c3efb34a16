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

package boiler

import (
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// Caller is a node recently heard calling for heat.
type Caller struct {
	ID          uint16 `json:"id"`
	PercentOpen uint8  `json:"pc"`
}

// Callers remembers who called for heat within the last ttl.
type Callers struct {
	cache *cache.Cache
}

func NewCallers(ttl time.Duration) *Callers {
	return &Callers{cache: cache.New(ttl, 2*ttl)}
}

func (c *Callers) Heard(id uint16, pc uint8) {
	c.cache.Set(strconv.Itoa(int(id)), Caller{ID: id, PercentOpen: pc}, cache.DefaultExpiration)
}

// List returns the unexpired callers ordered by ID.
func (c *Callers) List() []Caller {
	items := c.cache.Items()
	out := make([]Caller, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Caller))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Callers) Count() int {
	return len(c.cache.Items())
}
