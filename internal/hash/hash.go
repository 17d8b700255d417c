/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash provides the content hashes used for module change detection,
// resource names and cache checksums.
package hash

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// key must be exactly 32 bytes.
var key = []byte("potter-highwayhash-key-000000000")

// Sum64 returns the 64-bit HighwayHash of data.
func Sum64(data []byte) uint64 {
	return highwayhash.Sum64(data, key)
}

// String hashes a string.
func String(s string) uint64 {
	return Sum64([]byte(s))
}

// Short returns the first n hex digits of the hash of data. n is capped at 16.
func Short(data []byte, n int) string {
	s := fmt.Sprintf("%016x", Sum64(data))
	return s[:min(n, len(s))]
}
