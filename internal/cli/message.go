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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
	"github.com/spf13/cobra"
)

var errEmptyInput = errors.New("no input: pass an argument or pipe data on stdin")

// claimFlags are shared by the commands that issue messages.
type claimFlags struct {
	purpose      string
	expiresIn    time.Duration
	expiresAt    string
	neverExpires bool
}

func (f *claimFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.purpose, "for", "", "purpose the message is issued for (default \"universal\")")
	cmd.Flags().DurationVar(&f.expiresIn, "expires-in", 0, "relative expiration, e.g. 15m")
	cmd.Flags().StringVar(&f.expiresAt, "expires-at", "", "absolute expiration (RFC 3339)")
	cmd.Flags().BoolVar(&f.neverExpires, "never-expires", false, "ignore any configured default expiration")
	cmd.MarkFlagsMutuallyExclusive("expires-in", "expires-at", "never-expires")
}

func (f *claimFlags) options() ([]claims.Option, error) {
	var opts []claims.Option
	if f.purpose != "" {
		opts = append(opts, claims.For(f.purpose))
	}
	switch {
	case f.neverExpires:
		opts = append(opts, claims.NeverExpires())
	case f.expiresAt != "":
		t, err := time.Parse(time.RFC3339, f.expiresAt)
		if err != nil {
			return nil, fmt.Errorf("invalid --expires-at: %w", err)
		}
		opts = append(opts, claims.ExpiresAt(t))
	case f.expiresIn < 0:
		return nil, fmt.Errorf("invalid --expires-in: must not be negative")
	case f.expiresIn > 0:
		opts = append(opts, claims.ExpiresIn(f.expiresIn))
	}
	return opts, nil
}

func purposeOption(purpose string) []claims.Option {
	if purpose == "" {
		return nil
	}
	return []claims.Option{claims.For(purpose)}
}

// readInput returns args[0], or stdin when there is no argument or the
// argument is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	in := strings.TrimRight(string(data), "\r\n")
	if in == "" {
		return "", errEmptyInput
	}
	return in, nil
}

// readPayload reads the payload and decodes it as JSON when asJSON is
// set; otherwise the text is the payload.
func readPayload(cmd *cobra.Command, args []string, asJSON bool) (any, error) {
	in, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	if !asJSON {
		return in, nil
	}
	var payload any
	if err := json.Unmarshal([]byte(in), &payload); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return payload, nil
}

func (a *app) generateCommand() *cobra.Command {
	var (
		cf     claimFlags
		asJSON bool
		legacy bool
	)
	cmd := &cobra.Command{
		Use:   "generate [payload|-]",
		Short: "Sign a payload",
		Example: `  envelope generate --secret hex:00ff.. --for login --expires-in 15m alice
  echo '{"id":7}' | envelope generate --json --for api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args, asJSON)
			if err != nil {
				return err
			}
			v, err := a.verifier(cmd)
			if err != nil {
				return err
			}

			if legacy {
				if cmd.Flags().Changed("for") || cmd.Flags().Changed("expires-in") ||
					cmd.Flags().Changed("expires-at") || cmd.Flags().Changed("never-expires") {
					return fmt.Errorf("legacy messages carry no purpose or expiration")
				}
				msg, err := v.Legacy().Generate(payload)
				if err != nil {
					return err
				}
				return a.printer(cmd).PrintMessage(msg, verifier.FormatLegacy)
			}

			opts, err := cf.options()
			if err != nil {
				return err
			}
			msg, err := v.Generate(payload, opts...)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintMessage(msg, verifier.FormatCurrent)
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "decode the payload as JSON")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "sign in the legacy data--digest layout")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:   "verify [message|-]",
		Short: "Verify a signed message and print its payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			v, err := a.verifier(cmd)
			if err != nil {
				return err
			}
			payload, err := v.Verify(msg, purposeOption(purpose)...)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintPayload(payload)
		},
	}
	cmd.Flags().StringVar(&purpose, "for", "", "expected purpose (default \"universal\")")
	return cmd
}

func (a *app) encryptCommand() *cobra.Command {
	var (
		cf     claimFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt [payload|-]",
		Short: "Encrypt and sign a payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args, asJSON)
			if err != nil {
				return err
			}
			opts, err := cf.options()
			if err != nil {
				return err
			}
			e, err := a.encryptor(cmd)
			if err != nil {
				return err
			}
			msg, err := e.EncryptAndSign(payload, opts...)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintMessage(msg, verifier.FormatCurrent)
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "decode the payload as JSON")
	return cmd
}

func (a *app) decryptCommand() *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:   "decrypt [message|-]",
		Short: "Verify and decrypt a message and print its payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			e, err := a.encryptor(cmd)
			if err != nil {
				return err
			}
			payload, err := e.DecryptAndVerify(msg, purposeOption(purpose)...)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintPayload(payload)
		},
	}
	cmd.Flags().StringVar(&purpose, "for", "", "expected purpose (default \"universal\")")
	return cmd
}

// MessageInfo is what inspect reports about a message.
type MessageInfo struct {
	Format    string     `json:"format"`
	Purpose   string     `json:"purpose,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
	Payload   any        `json:"payload"`
}

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [message|-]",
		Short: "Check a message signature and show its claims without enforcing them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			v, err := a.verifier(cmd)
			if err != nil {
				return err
			}
			c, err := v.Claims(msg)
			if err != nil {
				return err
			}
			info := &MessageInfo{
				Format:    verifier.DetectFormat(msg).String(),
				Purpose:   c.Purpose,
				ExpiresAt: c.ExpiresAt,
				Expired:   c.Expired(time.Now()),
				Payload:   c.Payload,
			}
			return a.printer(cmd).PrintMessageInfo(info)
		},
	}
}
