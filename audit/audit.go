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

package audit

import (
	"bytes"
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// AccessGrantedEvent occurs when access to a protected API was granted.
	AccessGrantedEvent = "AccessGranted"
	// AccessDeniedEvent occurs when access to a protected API was denied.
	AccessDeniedEvent = "AccessDenied"
	// AccessKeyRegisteredEvent occurs when a key was registered that is authorized to access a protected API.
	AccessKeyRegisteredEvent = "AccessKeyRegistered"
	// CredentialOfferCreatedEvent occurs when an operator created a credential offer.
	CredentialOfferCreatedEvent = "CredentialOfferCreated"
	// PreAuthorisedCodeRegisteredEvent occurs when an operator registered a pre-authorised code.
	PreAuthorisedCodeRegisteredEvent = "PreAuthorisedCodeRegistered"
	// CredentialRevokedEvent occurs when an issued credential was revoked.
	CredentialRevokedEvent = "CredentialRevoked"
	// CredentialRejectedEvent occurs when an operator rejected a deferred credential.
	CredentialRejectedEvent = "CredentialRejected"
	// ConformanceStateDeletedEvent occurs when the conformance test state of a wallet was deleted.
	ConformanceStateDeletedEvent = "ConformanceStateDeleted"
)

const auditLogLevel = "audit"

var _auditLogger *logrus.Logger
var _auditLoggerOnce sync.Once

// auditLogger returns the logger audit events are written to.
// It shares output and formatter with the standard logger, but always logs, at the "audit" level.
func auditLogger() *logrus.Logger {
	_auditLoggerOnce.Do(func() {
		_auditLogger = logrus.New()
		_auditLogger.SetLevel(logrus.InfoLevel)
		_auditLogger.SetOutput(logrus.StandardLogger().Out)
		_auditLogger.SetFormatter(auditFormatter{})
	})
	return _auditLogger
}

// auditFormatter formats entries with the standard logger's formatter, replacing the info level with "audit".
type auditFormatter struct{}

func (a auditFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data, err := logrus.StandardLogger().Formatter.Format(entry)
	if err != nil {
		return nil, err
	}
	data = bytes.Replace(data, []byte("level=info"), []byte("level="+auditLogLevel), 1)
	data = bytes.Replace(data, []byte(`"level":"info"`), []byte(`"level":"`+auditLogLevel+`"`), 1)
	return data, nil
}

type auditContextKey struct{}

// Info contains the actor and operation of an audited call.
type Info struct {
	// Actor is the user or system that performed the operation.
	Actor string
	// Operation is the module and operation name, formatted as <module>.<operation>.
	Operation string
}

// Context returns a child context of the given context that carries the audit information.
func Context(ctx context.Context, actor, module, operation string) context.Context {
	return context.WithValue(ctx, auditContextKey{}, Info{
		Actor:     actor,
		Operation: module + "." + operation,
	})
}

// InfoFromContext returns the audit information from the context, or nil if there's none.
func InfoFromContext(ctx context.Context) *Info {
	info, ok := ctx.Value(auditContextKey{}).(Info)
	if !ok {
		return nil
	}
	return &info
}

// Log returns a log entry on the audit logger for the given event, with the fields of the given logger and the audit info from the context.
// It panics when the context carries no audit info or when the event name is empty: an audit event without actor must never be logged.
func Log(ctx context.Context, logger *logrus.Entry, eventName string) *logrus.Entry {
	info := InfoFromContext(ctx)
	if info == nil || info.Actor == "" {
		panic("audit: no actor in context")
	}
	if eventName == "" {
		panic("audit: no event name")
	}
	return auditLogger().
		WithFields(logger.Data).
		WithField("log", auditLogLevel).
		WithField("actor", info.Actor).
		WithField("operation", info.Operation).
		WithField("event", eventName)
}
