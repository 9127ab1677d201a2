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

package status

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"gopkg.in/yaml.v3"
)

const moduleName = "Status"
const diagnosticsEndpoint = "/status/diagnostics"
const statusEndpoint = "/status"
const healthEndpoint = "/health"

type status struct {
	system    *core.System
	startTime time.Time
}

// NewStatusEngine creates a new Engine for viewing all engines
func NewStatusEngine(system *core.System) core.Engine {
	return &status{
		system:    system,
		startTime: time.Now(),
	}
}

func (s *status) Name() string {
	return moduleName
}

func (s *status) Routes(router core.EchoRouter) {
	router.Add(http.MethodGet, diagnosticsEndpoint, s.diagnosticsOverview)
	router.Add(http.MethodGet, statusEndpoint, statusOK)
	router.Add(http.MethodGet, healthEndpoint, s.health)
}

// diagnosticsOverview renders the diagnostics of all engines as YAML, or as JSON if the client accepts it.
func (s *status) diagnosticsOverview(ctx echo.Context) error {
	diagnostics := s.collectDiagnostics()
	if strings.Contains(ctx.Request().Header.Get("Accept"), echo.MIMEApplicationJSON) {
		return ctx.JSON(http.StatusOK, diagnostics)
	}
	data, err := yaml.Marshal(diagnostics)
	if err != nil {
		return err
	}
	return ctx.String(http.StatusOK, string(data))
}

func (s *status) collectDiagnostics() map[string]interface{} {
	result := make(map[string]interface{})
	s.system.VisitEngines(func(engine core.Engine) {
		if m, ok := engine.(core.ViewableDiagnostics); ok {
			result[strings.ToLower(m.Name())] = core.DiagnosticResultMap{Items: m.Diagnostics()}.Result()
		}
	})
	return result
}

// Diagnostics returns list of DiagnosticResult for the StatusEngine.
func (s *status) Diagnostics() []core.DiagnosticResult {
	return []core.DiagnosticResult{
		core.GenericDiagnosticResult{Title: "uptime", Outcome: time.Since(s.startTime).Truncate(time.Second).String()},
		core.GenericDiagnosticResult{Title: "software_version", Outcome: core.Version()},
		core.GenericDiagnosticResult{Title: "git_commit", Outcome: core.GitCommit},
		core.GenericDiagnosticResult{Title: "os_arch", Outcome: core.OSArch()},
	}
}

type healthResponse struct {
	Status  string   `json:"status"`
	Engines []string `json:"engines"`
}

// health reports UP together with the registered engines.
func (s *status) health(ctx echo.Context) error {
	var names []string
	s.system.VisitEngines(func(engine core.Engine) {
		if m, ok := engine.(core.Named); ok {
			names = append(names, m.Name())
		}
	})
	return ctx.JSON(http.StatusOK, healthResponse{Status: "UP", Engines: names})
}

// statusOK returns 200 OK with a "OK" body
func statusOK(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "OK")
}
