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
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/pkg/kdf"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/spf13/cobra"
)

func newSetupCmd(a *app) *cobra.Command {
	var (
		file      string
		threshold int
		size      int
		kdfName   string
		encoding  string
		at        string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "setup <name>",
		Short: "Enroll factors and store a new key policy",
		Long: `Enroll the factors listed in a YAML factor file and store the
resulting policy under name. The derived key and any enrollment outputs
(OTP URIs, generated recovery codes and secrets) are printed once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()
			now, err := parseTime(at)
			if err != nil {
				return err
			}
			ff, err := LoadFactorFile(file)
			if err != nil {
				return err
			}
			exists, err := a.store.Exists(name)
			if err != nil {
				return err
			}
			if exists && !force {
				return fmt.Errorf("policy %q already exists (use --force to replace it)", name)
			}

			setupFactors, err := buildFactors(ctx, ff.Factors, now)
			if err != nil {
				return err
			}

			opts := a.setupOptions()
			if kdfName != "" {
				params := kdf.DefaultParams(kdf.Algorithm(kdfName))
				if params == nil {
					return fmt.Errorf("%w: %q", kdf.ErrUnsupportedAlgorithm, kdfName)
				}
				opts = append(opts, mfkdf.WithKDF(*params))
			}
			if size > 0 {
				opts = append(opts, mfkdf.WithSize(size))
			}
			k := ff.Threshold
			if cmd.Flags().Changed("threshold") {
				k = threshold
			}
			if k > 0 {
				opts = append(opts, mfkdf.WithThreshold(k))
			}

			dk, err := mfkdf.Setup(ctx, setupFactors, opts...)
			if err != nil {
				return err
			}
			defer dk.Destroy()

			if err := a.store.Save(name, dk.Policy()); err != nil {
				return fmt.Errorf("failed to save policy: %w", err)
			}
			key, err := encodeKey(dk.Key(), encoding)
			if err != nil {
				return err
			}
			return a.printer.PrintKey(name, key, dk.Policy(), dk.Outputs())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML factor file")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "factors required to derive the key (default all)")
	cmd.Flags().IntVar(&size, "size", 0, "key size in bytes")
	cmd.Flags().StringVar(&kdfName, "kdf", "", "output KDF (argon2id, argon2i, scrypt, pbkdf2, hkdf)")
	cmd.Flags().StringVar(&encoding, "encoding", "hex", "key encoding (hex, base64)")
	cmd.Flags().StringVar(&at, "time", "", "clock for TOTP factors (RFC 3339, default now)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing policy")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeriveCmd(a *app) *cobra.Command {
	var (
		in       deriveFlags
		encoding string
	)
	cmd := &cobra.Command{
		Use:   "derive <name>",
		Short: "Derive the key of a stored policy",
		Long: `Derive the key of a stored policy from the factors given with
--factor id=value. The policy is saved again afterwards because one-time
password factors advance on every successful derive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dk, err := a.unlock(cmd.Context(), args[0], &in)
			if err != nil {
				return err
			}
			defer dk.Destroy()
			key, err := encodeKey(dk.Key(), encoding)
			if err != nil {
				return err
			}
			return a.printer.PrintKey(args[0], key, dk.Policy(), dk.Outputs())
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&encoding, "encoding", "hex", "key encoding (hex, base64)")
	return cmd
}

func newEvaluateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <name> <factor-id>...",
		Short: "Check whether a set of factors satisfies a policy",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			ids := args[1:]
			return a.printer.PrintEvaluation(args[0], ids, mfkdf.Evaluate(policy, ids))
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show the structure of a stored policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			return a.printer.PrintPolicy(args[0], policy)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.store.List()
			if err != nil {
				return err
			}
			return a.printer.PrintPolicyList(names)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored policy",
		Long: `Delete a stored policy. The key can no longer be derived
afterwards unless a copy of the policy exists elsewhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Delete(args[0]); err != nil {
				return err
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Deleted policy %s", args[0]))
		},
	}
}
