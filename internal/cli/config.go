// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mfkdf.
//
// go-mfkdf is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-mfkdf/internal/config"
	"github.com/jeremyhahn/go-mfkdf/pkg/logger"
	"github.com/jeremyhahn/go-mfkdf/pkg/metrics"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/ratelimit"
	"github.com/jeremyhahn/go-mfkdf/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds the state shared by every command of one invocation
type app struct {
	v *viper.Viper

	cfg     *config.Config
	store   *storage.PolicyStore
	log     logger.Logger
	metrics metrics.Recorder
	limiter *ratelimit.Limiter
	printer *Printer
	errOut  io.Writer
}

// init loads the configuration file, layers flag and environment values
// over it, and opens the policy store
func (a *app) init(cmd *cobra.Command) error {
	a.errOut = cmd.ErrOrStderr()
	a.printer = NewPrinter(a.v.GetString("output"), cmd.OutOrStdout())
	if f := a.printer.format; f != OutputFormatText && f != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", f)
	}

	cfg, err := config.LoadOrDefault(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if a.v.IsSet("data-dir") {
		cfg.Storage.Path = a.v.GetString("data-dir")
		if !a.v.IsSet("backend") {
			cfg.Storage.Backend = "file"
		}
	}
	if a.v.IsSet("backend") {
		cfg.Storage.Backend = a.v.GetString("backend")
	}
	if a.v.IsSet("codec") {
		cfg.Storage.Codec = a.v.GetString("codec")
	}
	if a.v.IsSet("log-level") {
		cfg.Logging.Level = a.v.GetString("log-level")
	}
	if a.v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.log = cfg.CreateLogger(a.errOut)
	a.metrics = cfg.CreateMetrics()
	a.limiter = cfg.CreateLimiter()
	a.store, err = cfg.CreateStore()
	if err != nil {
		return fmt.Errorf("failed to open policy store: %w", err)
	}
	return nil
}

func (a *app) setupOptions() []mfkdf.Option {
	return append(a.cfg.SetupOptions(), mfkdf.WithLogger(a.log), mfkdf.WithMetrics(a.metrics))
}

func (a *app) deriveOptions() []mfkdf.Option {
	return append(a.cfg.DeriveOptions(),
		mfkdf.WithLogger(a.log), mfkdf.WithMetrics(a.metrics), mfkdf.WithLimiter(a.limiter))
}

// close releases resources opened by init
func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
}

// unlock loads the named policy and derives its key from the factors given
// on the command line. The refreshed policy is saved before returning, so
// one-time codes are never accepted twice.
func (a *app) unlock(ctx context.Context, name string, in *deriveFlags) (*mfkdf.DerivedKey, error) {
	policy, err := a.store.Load(name)
	if err != nil {
		return nil, err
	}
	now, err := in.clock()
	if err != nil {
		return nil, err
	}
	inputs, err := parseDeriveInputs(policy, in.factors, in.persisted, now)
	if err != nil {
		return nil, err
	}
	dk, err := mfkdf.PolicyDerive(ctx, policy, inputs, a.deriveOptions()...)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(name, dk.Policy()); err != nil {
		dk.Destroy()
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}
	return dk, nil
}

// deriveFlags are the factor inputs shared by every command that needs the
// key
type deriveFlags struct {
	factors   []string
	persisted []string
	time      string
}

func (d *deriveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&d.factors, "factor", nil, "factor input as id=value (repeatable)")
	cmd.Flags().StringArrayVar(&d.persisted, "persisted", nil, "persisted share as id=hex (repeatable)")
	cmd.Flags().StringVar(&d.time, "time", "", "clock for TOTP factors (RFC 3339, default now)")
}

func (d *deriveFlags) clock() (time.Time, error) {
	return parseTime(d.time)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --time %q: %w", s, err)
	}
	return t, nil
}
