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
	"fmt"
	"io"

	"github.com/jeremyhahn/go-envelope/internal/config"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries flag and environment state shared by the commands.
type app struct {
	v *viper.Viper
}

// loadConfig layers the config file, ENVELOPE_* variables and flags, in
// that order of increasing precedence.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Parse(a.v.GetString("config"))
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"secret":      &cfg.Envelope.Secret,
		"sign-secret": &cfg.Envelope.SignSecret,
		"digest":      &cfg.Envelope.Digest,
		"cipher":      &cfg.Envelope.Cipher,
		"serializer":  &cfg.Envelope.Serializer,
	}
	for key, dst := range overrides {
		if v := a.v.GetString(key); v != "" {
			*dst = v
		}
	}
	if a.v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Envelope.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(a.v.GetString("output"), cmd.OutOrStdout())
}

func (a *app) logger(cfg *config.Config, out io.Writer) logger.Logger {
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: out,
	})
}

func (a *app) verbosef(cmd *cobra.Command, format string, args ...interface{}) {
	if a.v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}

func (a *app) verifier(cmd *cobra.Command) (*verifier.Verifier, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	secret, err := cfg.Envelope.DecodedSecret()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Envelope.VerifierOptions(a.logger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	v, err := verifier.New(secret, opts...)
	if err != nil {
		return nil, err
	}
	a.verbosef(cmd, "verifier: digest=%s serializer=%s", v.Digest(), v.Serializer().Name())
	return v, nil
}

func (a *app) encryptor(cmd *cobra.Command) (*encryptor.Encryptor, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return a.newEncryptor(cmd, cfg)
}

func (a *app) newEncryptor(cmd *cobra.Command, cfg *config.Config) (*encryptor.Encryptor, error) {
	secret, err := cfg.Envelope.DecodedSecret()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Envelope.EncryptorOptions(a.logger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	e, err := encryptor.New(secret, opts...)
	if err != nil {
		return nil, err
	}
	a.verbosef(cmd, "encryptor: cipher=%s digest=%s", e.Cipher(), e.Verifier().Digest())
	return e, nil
}
