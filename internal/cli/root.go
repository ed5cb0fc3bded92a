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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the mfkdf command tree. Persistent flags are bound
// through viper so each can also be set with an MFKDF_ environment variable
// (MFKDF_OUTPUT, MFKDF_DATA_DIR, ...).
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "mfkdf",
		Short: "mfkdf - multi-factor key derivation",
		Long: `mfkdf derives a stable cryptographic key from a threshold of
authentication factors and stores the public policy needed to derive it
again.

Supported factors:
  - password:  memorized secret
  - question:  security question answer
  - uuid:      recovery code
  - hotp:      counter-based one-time password
  - totp:      time-based one-time password
  - hmacsha1:  HMAC-SHA1 challenge-response token
  - passkey:   WebAuthn PRF output
  - ooba:      out-of-band code delivered by a trusted service
  - stack:     nested policy used as a single factor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (YAML)")
	flags.StringP("output", "o", "text", "output format (text, json)")
	flags.String("data-dir", "", "directory for policy storage (file backend)")
	flags.String("backend", "", "storage backend (memory, file)")
	flags.String("codec", "", "policy encoding (json, cbor)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.BoolP("verbose", "v", false, "verbose output")

	a.v.SetEnvPrefix("MFKDF")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}

	rootCmd.AddCommand(
		newSetupCmd(a),
		newDeriveCmd(a),
		newEvaluateCmd(a),
		newInspectCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newThresholdCmd(a),
		newAddFactorCmd(a),
		newRemoveFactorCmd(a),
		newRecoverCmd(a),
		newHintCmd(a),
		newPersistCmd(a),
		newVersionCmd(a),
	)
	return rootCmd, a
}

// Execute runs the command line and returns the process exit code. Errors
// are printed to stderr in the selected output format.
func Execute(ctx context.Context) int {
	rootCmd, a := newRoot()
	defer a.close()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		format := string(OutputFormatText)
		if a.printer != nil {
			format = string(a.printer.format)
		}
		_ = NewPrinter(format, rootCmd.ErrOrStderr()).PrintError(err) // best-effort
		return 1
	}
	return 0
}
