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

package cli

import (
	"crypto"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-envelope/internal/config"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/rand"
	"github.com/jeremyhahn/go-envelope/pkg/keygen"
	"github.com/spf13/cobra"
)

func (a *app) keygenCommand() *cobra.Command {
	var (
		length     int
		encoding   string
		passphrase string
		salt       string
		iterations int
		hashName   string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secret",
		Long: `Generate a random secret, or derive one from a passphrase and salt
with PBKDF2. The output uses the hex: or base64: prefix understood by
--secret and the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if length <= 0 {
				return keygen.ErrInvalidKeyLength
			}

			var key []byte
			if passphrase != "" {
				if salt == "" {
					return fmt.Errorf("--salt is required with --passphrase")
				}
				hash, err := parseHash(hashName)
				if err != nil {
					return err
				}
				gen, err := keygen.New([]byte(passphrase), keygen.WithIterations(iterations), keygen.WithHash(hash))
				if err != nil {
					return err
				}
				a.verbosef(cmd, "deriving %d bytes with PBKDF2-%s, %d iterations", length, hashName, gen.Iterations())
				if key, err = gen.GenerateKey([]byte(salt), length); err != nil {
					return err
				}
			} else {
				var err error
				if key, err = rand.Default().Rand(length); err != nil {
					return err
				}
			}

			var encoded string
			switch encoding {
			case "hex":
				encoded = config.PrefixHex + hex.EncodeToString(key)
			case "base64":
				encoded = config.PrefixBase64 + base64.StdEncoding.EncodeToString(key)
			default:
				return fmt.Errorf("unknown encoding %q (want hex or base64)", encoding)
			}
			return a.printer(cmd).PrintKey(encoded, len(key))
		},
	}
	cmd.Flags().IntVar(&length, "length", 32, "key length in bytes")
	cmd.Flags().StringVar(&encoding, "encoding", "hex", "output encoding (hex, base64)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "derive the key from this passphrase")
	cmd.Flags().StringVar(&salt, "salt", "", "PBKDF2 salt")
	cmd.Flags().IntVar(&iterations, "iterations", keygen.DefaultIterations, "PBKDF2 iterations")
	cmd.Flags().StringVar(&hashName, "hash", "SHA1", "PBKDF2 hash (SHA1, SHA256, SHA512)")
	return cmd
}

func parseHash(name string) (crypto.Hash, error) {
	switch name {
	case "SHA1", "sha1":
		return crypto.SHA1, nil
	case "SHA256", "sha256":
		return crypto.SHA256, nil
	case "SHA512", "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %s", keygen.ErrInvalidHash, name)
	}
}
