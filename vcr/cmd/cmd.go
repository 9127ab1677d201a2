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

package cmd

import (
	"fmt"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vcr"
	v0 "github.com/nuts-foundation/ebsi-issuer/vcr/api/openid4vci/v0"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet contains flags relevant for VCR
func FlagSet() *pflag.FlagSet {
	defs := vcr.DefaultConfig()
	flagSet := pflag.NewFlagSet("vcr", pflag.ContinueOnError)
	flagSet.String("vcr.issuer.did", defs.Issuer.DID, "DID of the issuer. When not set, a did:web DID is derived from the public URL.")
	flagSet.String("vcr.issuer.keyfile", defs.Issuer.KeyFile, "PEM file with the ES256 signing key of the issuer. It is generated when it does not exist. "+
		"A relative path is resolved against the data directory.")
	flagSet.String("vcr.issuer.kid", defs.Issuer.KID, "Key ID of the signing key. Defaults to <DID>#key-1.")

	o := defs.OpenID4VCI
	flagSet.Duration("vcr.openid4vci.timeout", o.Timeout, "Timeout for HTTP requests to other parties, e.g. when resolving remote status lists.")
	flagSet.Duration("vcr.openid4vci.codettl", o.CodeTTL, "Validity of authorization codes and pre-authorized codes.")
	flagSet.Duration("vcr.openid4vci.cnoncettl", o.CNonceTTL, "Validity of c_nonce values.")
	flagSet.Duration("vcr.openid4vci.acceptancettl", o.AcceptanceTTL, "Validity of acceptance tokens of deferred credentials.")
	flagSet.Duration("vcr.openid4vci.accesstokenttl", o.AccessTokenTTL, "Validity of access tokens.")
	flagSet.Duration("vcr.openid4vci.requestttl", o.RequestTTL, "Validity of ID token and VP token requests.")
	flagSet.Duration("vcr.openid4vci.offerttl", o.OfferTTL, "Default validity of credential offers.")
	flagSet.Duration("vcr.openid4vci.credentialvalidity", o.CredentialValidity, "Validity of issued credentials.")
	flagSet.Duration("vcr.openid4vci.replayttl", o.ReplayTTL, "How long used ID tokens, VP tokens and proofs are remembered to detect replay.")
	flagSet.Duration("vcr.openid4vci.deferreddelay", o.DeferredDelay, "Time after which a deferred credential becomes available.")
	flagSet.StringSlice("vcr.openid4vci.deferredtypes", o.DeferredTypes, "Credential types that are issued deferred.")
	flagSet.StringSlice("vcr.openid4vci.credentialtypes", o.CredentialTypes, "Supported credential type sets, each a space-separated list of types.")
	flagSet.Bool("vcr.openid4vci.conformance.enabled", o.Conformance.Enabled, "Enables support for the EBSI wallet conformance tests.")
	flagSet.String("vcr.openid4vci.conformance.pin", o.Conformance.PIN, "PIN of pre-authorized codes in conformance mode.")

	flagSet.Int("vcr.revocation.listsize", defs.Revocation.ListSize, "Number of entries in a StatusList2021 status list.")
	flagSet.Int("vcr.revocation.maxattempts", defs.Revocation.MaxAttempts, "Number of attempts to find a free status list index before a new list is started.")
	flagSet.String("vcr.templates.dir", defs.Templates.Dir, "Directory with <CredentialType>.mustache credential subject templates, overriding the embedded ones.")
	return flagSet
}

// Cmd contains sub-commands for the remote client
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vcr",
		Short: "Credential issuer administration commands",
	}
	cmd.PersistentFlags().AddFlagSet(core.ClientConfigFlags())

	cmd.AddCommand(offerCmd())
	cmd.AddCommand(preAuthoriseCmd())
	cmd.AddCommand(revokeCmd())
	cmd.AddCommand(rejectCmd())
	cmd.AddCommand(conformanceResetCmd())

	return cmd
}

func offerCmd() *cobra.Command {
	var preAuthorized bool
	var expiresIn int
	cmd := &cobra.Command{
		Use:   "offer [subject DID] [credential type]...",
		Short: "Creates a credential offer for the given holder.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := httpClient(cmd.Flags())
			if err != nil {
				return err
			}
			request := v0.CreateCredentialOfferRequest{
				SubjectDID:      args[0],
				CredentialTypes: args[1:],
				GrantType:       openid4vci.AuthorizationCodeGrant,
				ExpiresIn:       expiresIn,
			}
			if preAuthorized {
				request.GrantType = openid4vci.PreAuthorizedCodeGrant
			}
			offer, err := client.CreateCredentialOffer(cmd.Context(), request)
			if err != nil {
				return fmt.Errorf("unable to create credential offer: %w", err)
			}
			cmd.Println(offer.CredentialOfferURI)
			if offer.UserPIN != "" {
				cmd.Printf("PIN: %s\n", offer.UserPIN)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&preAuthorized, "pre-authorized", false, "Create an offer with a pre-authorized code instead of an authorization code grant.")
	cmd.Flags().IntVar(&expiresIn, "expires-in", 0, "Validity of the offer in seconds. Defaults to vcr.openid4vci.offerttl of the issuer.")
	return cmd
}

func preAuthoriseCmd() *cobra.Command {
	var clientID, code, pin string
	cmd := &cobra.Command{
		Use:   "preauthorise [credential type]...",
		Short: "Registers a pre-authorized code that a wallet can exchange for an access token.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := httpClient(cmd.Flags())
			if err != nil {
				return err
			}
			result, err := client.RegisterPreAuthorisedCode(cmd.Context(), v0.RegisterPreAuthorisedCodeRequest{
				ClientID:        clientID,
				CredentialTypes: args,
				Code:            code,
				PIN:             pin,
			})
			if err != nil {
				return fmt.Errorf("unable to register pre-authorized code: %w", err)
			}
			cmd.Printf("Code: %s\nPIN: %s\n", result.Code, result.PIN)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "DID of the wallet the code is bound to.")
	cmd.Flags().StringVar(&code, "code", "", "Pre-authorized code to register. Generated when not set.")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN of the code. Generated when not set.")
	return cmd
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [credential ID]",
		Short: "Revokes an issued credential by setting its bit in the status list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := httpClient(cmd.Flags())
			if err != nil {
				return err
			}
			if err := client.RevokeCredential(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("unable to revoke credential: %w", err)
			}
			cmd.Printf("%s is revoked\n", args[0])
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject [credential ID]",
		Short: "Rejects a pending deferred credential.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := httpClient(cmd.Flags())
			if err != nil {
				return err
			}
			if err := client.RejectCredential(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("unable to reject credential: %w", err)
			}
			cmd.Printf("%s is rejected\n", args[0])
			return nil
		},
	}
}

func conformanceResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conformance-reset [client ID]",
		Short: "Deletes the issuance state of a conformance test wallet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := httpClient(cmd.Flags())
			if err != nil {
				return err
			}
			deleted, err := client.DeleteConformanceState(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("unable to delete conformance state: %w", err)
			}
			cmd.Printf("deleted %d issuance state(s) of %s\n", deleted, args[0])
			return nil
		},
	}
}

// httpClient creates a remote client
func httpClient(set *pflag.FlagSet) (v0.HTTPClient, error) {
	config := core.NewClientConfig()
	if err := config.Load(set); err != nil {
		return v0.HTTPClient{}, err
	}
	return v0.HTTPClient{ClientConfig: *config}, nil
}
