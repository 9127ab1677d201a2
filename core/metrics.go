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
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace is the prometheus namespace of all metrics of the issuer.
const MetricsNamespace = "issuer"

// NewMetricsEngine creates a new Engine for exposing prometheus metrics via http.
// Metrics are exposed on /metrics, by default the GoCollector and ProcessCollector are enabled.
func NewMetricsEngine() Engine {
	return &metrics{}
}

type metrics struct {
	collectors []prometheus.Collector
}

func (m *metrics) Name() string {
	return "Metrics"
}

func (m *metrics) Configure(_ ServerConfig) error {
	if len(m.collectors) > 0 {
		return nil
	}
	m.collectors = []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range m.collectors {
		if _, err := RegisterCollector(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *metrics) Start() error {
	return nil
}

// Shutdown unregisters the collectors registered by Configure.
func (m *metrics) Shutdown() error {
	for _, c := range m.collectors {
		prometheus.Unregister(c)
	}
	m.collectors = nil
	return nil
}

func (m *metrics) Routes(router EchoRouter) {
	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterCollector registers the collector with the default registry.
// If an equal collector was registered before (e.g. by another engine instance in tests), that one is returned.
func RegisterCollector[T prometheus.Collector](collector T) (T, error) {
	err := prometheus.Register(collector)
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return collector, err
}
