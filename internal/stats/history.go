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

package stats

// WarmHistoryDays is the number of days of warm-mode history kept per hour.
const WarmHistoryDays = 7

// WarmHistory records, for one hour of the day, whether the unit was in warm mode on each
// of the last WarmHistoryDays days. The first ever Push fills every day with the sample so
// a fresh history does not read as "never warm".
type WarmHistory struct {
	days  [WarmHistoryDays]bool
	head  uint8 // index of the newest day
	valid bool
}

func (h *WarmHistory) Push(warm bool) {
	if !h.valid {
		for i := range h.days {
			h.days[i] = warm
		}
		h.head = 0
		h.valid = true
		return
	}
	h.head = (h.head + 1) % WarmHistoryDays
	h.days[h.head] = warm
}

func (h WarmHistory) Valid() bool { return h.valid }

// Day returns the sample ago days back; 0 is the newest.
func (h WarmHistory) Day(ago int) bool {
	if !h.valid || ago < 0 || ago >= WarmHistoryDays {
		return false
	}
	return h.days[(int(h.head)-ago+WarmHistoryDays)%WarmHistoryDays]
}

// WarmDays counts the days in warm mode.
func (h WarmHistory) WarmDays() int {
	n := 0
	for i := 0; i < WarmHistoryDays; i++ {
		if h.Day(i) {
			n++
		}
	}
	return n
}

// Encode packs the history into one byte, newest day in bit 0. Bit 7 is always clear so
// a valid history never reads as Unset.
func (h WarmHistory) Encode() uint8 {
	if !h.valid {
		return Unset
	}
	var b uint8
	for i := 0; i < WarmHistoryDays; i++ {
		if h.Day(i) {
			b |= 1 << i
		}
	}
	return b
}

func DecodeWarmHistory(b uint8) WarmHistory {
	var h WarmHistory
	if b&0x80 != 0 {
		return h
	}
	h.valid = true
	for i := 0; i < WarmHistoryDays; i++ {
		h.days[(WarmHistoryDays-i)%WarmHistoryDays] = b&(1<<i) != 0
	}
	return h
}

const (
	compressLowC16  = 20 * 16
	compressHighC16 = 25 * 16
	compressLowVal  = compressLowC16 >> 3
	compressHighVal = compressLowVal + compressHighC16 - compressLowC16
)

// CompressTempC16 maps 1/16 C onto a byte: half degrees below 20C, full resolution in
// the 20..25C comfort range and half degrees above, clamped to [0, MaxStatValue].
func CompressTempC16(c16 int) uint8 {
	switch {
	case c16 <= 0:
		return 0
	case c16 < compressLowC16:
		return uint8(c16 >> 3)
	case c16 < compressHighC16:
		return uint8(compressLowVal + c16 - compressLowC16)
	}
	v := compressHighVal + (c16-compressHighC16)>>3
	if v > MaxStatValue {
		return MaxStatValue
	}
	return uint8(v)
}

// ExpandTempC16 is the inverse of CompressTempC16; false for Unset.
func ExpandTempC16(v uint8) (int, bool) {
	switch {
	case v == Unset:
		return 0, false
	case v < compressLowVal:
		return int(v) << 3, true
	case v < compressHighVal:
		return compressLowC16 + int(v) - compressLowVal, true
	}
	return compressHighC16 + (int(v)-compressHighVal)<<3, true
}
