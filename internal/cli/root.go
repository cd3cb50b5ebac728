// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli implements the envelope command line tool.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ENVELOPE"

// NewRootCommand builds the command tree. Every persistent flag can also
// be supplied as ENVELOPE_<FLAG>, e.g. ENVELOPE_SIGN_SECRET.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "envelope",
		Short: "Sign, verify, encrypt and decrypt message envelopes",
		Long: `envelope produces and opens tamper-evident messages.

Signed messages use the "header.body.signature" layout; messages in the
legacy "data--digest" layout are still accepted by verify. Encrypted
messages carry an AEAD bundle inside a signed message.

Secrets accept hex:, base64: and file: prefixes; anything else is used
as literal bytes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (YAML)")
	flags.String("secret", "", "envelope secret")
	flags.String("sign-secret", "", "separate signing secret for encrypted messages")
	flags.String("digest", "", "HMAC digest: SHA1, SHA256, SHA384, SHA512 (default SHA1)")
	flags.String("cipher", "", "AEAD cipher: A128GCM, A192GCM, A256GCM, ChaCha20-Poly1305, XChaCha20-Poly1305, auto (default A256GCM)")
	flags.String("serializer", "", "payload serializer: json, cbor, yaml (default json)")
	flags.StringP("output", "o", string(OutputFormatText), "output format (text, json)")
	flags.BoolP("verbose", "v", false, "verbose output")

	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.generateCommand(),
		a.verifyCommand(),
		a.encryptCommand(),
		a.decryptCommand(),
		a.inspectCommand(),
		a.keygenCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	if err != nil {
		format, _ := root.PersistentFlags().GetString("output")
		_ = NewPrinter(format, os.Stderr).PrintError(err)
	}
	return err
}
