/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package revocation

import (
	"bytes"
	"compress/gzip"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrIndexNotInBitstring is returned when an index is outside the bitstring.
var ErrIndexNotInBitstring = errors.New("index not in status list")

// minBitstringLengthInBytes is the minimum size of the uncompressed bitstring, 16kB or 131072 entries.
const minBitstringLengthInBytes = 16 * 1024

// maxExpandedLengthInBytes bounds decompression of remote status lists.
const maxExpandedLengthInBytes = 16 * 1024 * 1024

// bitstring is not thread-safe
type bitstring []byte

// newBitstring creates a bitstring that can hold at least the given number of entries, initialized to 0.
func newBitstring(entries int) *bitstring {
	length := (entries + 7) / 8
	if length < minBitstringLengthInBytes {
		length = minBitstringLengthInBytes
	}
	bs := bitstring(make([]byte, length))
	return &bs
}

// bit returns the value of the bitstring at statusListIndex, or (false, error) if the requested index is out of bounds.
func (bs *bitstring) bit(statusListIndex int) (bool, error) {
	q, r := statusListIndex/8, byte(statusListIndex%8)
	if statusListIndex < 0 || q >= len(*bs) {
		return false, ErrIndexNotInBitstring
	}
	return isSet((*bs)[q], r), nil
}

// setBit sets the value of the bit at statusListIndex, or returns an error when the index is out of bounds.
func (bs *bitstring) setBit(statusListIndex int, value bool) error {
	q, r := statusListIndex/8, byte(statusListIndex%8)
	if statusListIndex < 0 || q >= len(*bs) {
		return ErrIndexNotInBitstring
	}
	if isSet((*bs)[q], r) != value {
		(*bs)[q] ^= 1 << (7 - r)
	}
	return nil
}

// isSet returns true if the r-th bit in b is 1, counting from the most significant bit. r MUST be in range [0, 7].
func isSet(b, r byte) bool {
	return b>>(7-r)&1 == 1
}

// Scan implements sql.Scanner, it expands the compressed bitstring stored in the database.
func (bs *bitstring) Scan(src any) error {
	var encoded string
	switch v := src.(type) {
	case nil:
		*bs = bitstring{}
		return nil
	case string:
		encoded = v
	case []byte:
		encoded = string(v)
	default:
		return fmt.Errorf("bitstring unmarshal from DB: unsupported type %T", src)
	}
	expanded, err := expand(encoded)
	if err != nil {
		return fmt.Errorf("bitstring unmarshal from DB, unable to expand: %w", err)
	}
	*bs = expanded
	return nil
}

// Value implements driver.Valuer, it stores the bitstring compressed.
func (bs bitstring) Value() (driver.Value, error) {
	if bs == nil {
		return nil, nil
	}
	return compress(bs)
}

// compress a StatusList2021 bitstring. The input is gzip compressed followed by base64url encoding.
func compress(bs bitstring) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(bs); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// expand a compressed StatusList2021 bitstring. Padding is optional and both the URL and standard alphabets are accepted.
func expand(encodedList string) (bitstring, error) {
	encodedList = strings.TrimRight(encodedList, "=")
	var compressed []byte
	var err error
	if strings.ContainsAny(encodedList, "+/") {
		compressed, err = base64.RawStdEncoding.DecodeString(encodedList)
	} else {
		compressed, err = base64.RawURLEncoding.DecodeString(encodedList)
	}
	if err != nil {
		return nil, err
	}
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gzr.Close()
	var expanded bytes.Buffer
	n, err := expanded.ReadFrom(io.LimitReader(gzr, maxExpandedLengthInBytes+1))
	if err != nil {
		return nil, err
	}
	if n > maxExpandedLengthInBytes {
		return nil, errors.New("expanded bitstring too large")
	}
	return expanded.Bytes(), nil
}
