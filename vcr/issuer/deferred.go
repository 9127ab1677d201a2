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
	"context"
	"sync"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
)

// deferredIssuer completes deferred credentials in the background, after a delay.
// The credential stays PENDING until the issue func succeeds.
type deferredIssuer struct {
	delay  time.Duration
	issue  func(ctx context.Context, credentialID string) error
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDeferredIssuer(delay time.Duration, issue func(ctx context.Context, credentialID string) error) *deferredIssuer {
	ctx, cancel := context.WithCancel(context.Background())
	return &deferredIssuer{
		delay:  delay,
		issue:  issue,
		ctx:    ctx,
		cancel: cancel,
	}
}

// schedule issues the credential after the configured delay, unless the issuer is shut down before that.
func (d *deferredIssuer) schedule(credentialID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			log.Logger().
				WithField(core.LogFieldCredentialID, credentialID).
				Info("Deferred issuance cancelled, credential stays pending")
			return
		case <-timer.C:
		}
		if err := d.issue(d.ctx, credentialID); err != nil {
			log.Logger().
				WithError(err).
				WithField(core.LogFieldCredentialID, credentialID).
				Error("Deferred issuance failed")
		}
	}()
}

// shutdown cancels scheduled issuance and waits for running issuance to finish.
func (d *deferredIssuer) shutdown() {
	d.cancel()
	d.wg.Wait()
}
