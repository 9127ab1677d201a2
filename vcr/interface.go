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

package vcr

import (
	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/nuts-foundation/go-did/did"
)

// VCR is the credential issuer engine, as seen by its API bindings.
type VCR interface {
	// OpenID returns the OpenID4VCI issuance handler. It is available once the engine has been started.
	OpenID() issuer.OpenIDHandler
	// StatusList returns the StatusList2021 revocation lists of the issuer. It is available once the engine has been started.
	StatusList() *revocation.StatusList
	// DIDDocument returns the DID document the issuer publishes, or nil if the issuer DID is not a did:web of this node.
	DIDDocument() *did.Document
}
