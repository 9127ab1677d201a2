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

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticResultMap(t *testing.T) {
	issuer := DiagnosticResultMap{
		Title: "vcr",
		Items: []DiagnosticResult{
			GenericDiagnosticResult{Title: "issuer_did", Outcome: "did:web:issuer.example.com"},
			GenericDiagnosticResult{Title: "conformance_mode", Outcome: false},
		},
	}

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "vcr", issuer.Name())
	})
	t.Run("result is keyed by item name", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{
			"issuer_did":       "did:web:issuer.example.com",
			"conformance_mode": false,
		}, issuer.Result())
	})
	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "map[conformance_mode:false issuer_did:did:web:issuer.example.com]", issuer.String())
	})
	t.Run("nested maps", func(t *testing.T) {
		engines := DiagnosticResultMap{Items: []DiagnosticResult{issuer}}

		assert.Equal(t, map[string]interface{}{"vcr": issuer.Result()}, engines.Result())
	})
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{}, DiagnosticResultMap{}.Result())
	})
}

func TestGenericDiagnosticResult(t *testing.T) {
	result := GenericDiagnosticResult{Title: "sql_dialect", Outcome: "sqlite"}

	assert.Equal(t, "sql_dialect", result.Name())
	assert.Equal(t, "sqlite", result.String())
	assert.Equal(t, "sqlite", result.Result())
	t.Run("nil outcome", func(t *testing.T) {
		assert.Equal(t, "<nil>", GenericDiagnosticResult{Title: "session_store"}.String())
	})
}
