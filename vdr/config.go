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

package vdr

import "time"

// ModuleName is the name of the VDR engine, also used as its config key.
const ModuleName = "VDR"

// Config holds the config of the VDR engine.
type Config struct {
	// CacheTTL is how long resolved keys are cached.
	CacheTTL time.Duration `koanf:"cachettl"`
	// Timeout is the HTTP timeout for did:web resolution.
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns the default config of the VDR engine.
func DefaultConfig() Config {
	return Config{
		CacheTTL: 5 * time.Minute,
		Timeout:  5 * time.Second,
	}
}
