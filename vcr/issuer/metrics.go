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

package issuer

import (
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	issuanceInTime   = "in_time"
	issuanceDeferred = "deferred"
)

type issuerMetrics struct {
	issued      *prometheus.CounterVec
	revoked     prometheus.Counter
	tokens      *prometheus.CounterVec
	protocolErr *prometheus.CounterVec
}

func newIssuerMetrics() (*issuerMetrics, error) {
	var err error
	result := &issuerMetrics{}
	result.issued, err = core.RegisterCollector(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: core.MetricsNamespace,
		Subsystem: "vcr",
		Name:      "credentials_issued_total",
		Help:      "Number of issued credentials, by issuance mode (in_time, deferred)",
	}, []string{"mode"}))
	if err != nil {
		return nil, err
	}
	result.revoked, err = core.RegisterCollector(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: core.MetricsNamespace,
		Subsystem: "vcr",
		Name:      "credentials_revoked_total",
		Help:      "Number of revoked credentials",
	}))
	if err != nil {
		return nil, err
	}
	result.tokens, err = core.RegisterCollector(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: core.MetricsNamespace,
		Subsystem: "vcr",
		Name:      "access_tokens_total",
		Help:      "Number of issued access tokens, by grant type",
	}, []string{"grant_type"}))
	if err != nil {
		return nil, err
	}
	result.protocolErr, err = core.RegisterCollector(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: core.MetricsNamespace,
		Subsystem: "vcr",
		Name:      "protocol_errors_total",
		Help:      "Number of failed protocol requests, by operation",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	return result, nil
}
