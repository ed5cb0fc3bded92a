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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"github.com/spf13/cobra"
)

// reconstituteCmd builds a command that derives the key, applies change to
// it and saves the updated policy
func reconstituteCmd(a *app, use, short string, args cobra.PositionalArgs, change func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error) (*cobra.Command, *deriveFlags) {
	in := &deriveFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			dk, err := a.unlock(cmd.Context(), name, in)
			if err != nil {
				return err
			}
			defer dk.Destroy()
			if err := change(cmd, dk, args); err != nil {
				return err
			}
			if err := a.store.Save(name, dk.Policy()); err != nil {
				return fmt.Errorf("failed to save policy: %w", err)
			}
			return nil
		},
	}
	in.register(cmd)
	return cmd, in
}

func newThresholdCmd(a *app) *cobra.Command {
	cmd, _ := reconstituteCmd(a, "threshold <name> <k>", "Change the number of factors required",
		cobra.ExactArgs(2),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			k, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid threshold %q: %w", args[1], err)
			}
			if err := dk.SetThreshold(cmd.Context(), k); err != nil {
				return err
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Policy %s now requires %d of %d factors",
				args[0], k, len(dk.Policy().Factors)))
		})
	return cmd
}

func newAddFactorCmd(a *app) *cobra.Command {
	var (
		file string
		in   *deriveFlags
	)
	cmd, in := reconstituteCmd(a, "add-factor <name>", "Enroll additional factors",
		cobra.ExactArgs(1),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			return enroll(cmd, a, dk, args[0], file, in, false)
		})
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML factor file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRecoverCmd(a *app) *cobra.Command {
	var (
		file string
		in   *deriveFlags
	)
	cmd, in := reconstituteCmd(a, "recover <name>", "Replace lost factors with new ones under the same ids",
		cobra.ExactArgs(1),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			return enroll(cmd, a, dk, args[0], file, in, true)
		})
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML factor file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// enroll adds or replaces the factors of a factor file and prints their
// enrollment outputs
func enroll(cmd *cobra.Command, a *app, dk *mfkdf.DerivedKey, name, file string, in *deriveFlags, replace bool) error {
	ff, err := LoadFactorFile(file)
	if err != nil {
		return err
	}
	now, err := in.clock()
	if err != nil {
		return err
	}
	fs, err := buildFactors(cmd.Context(), ff.Factors, now)
	if err != nil {
		return err
	}
	if replace {
		err = dk.RecoverFactors(cmd.Context(), fs)
	} else {
		err = dk.AddFactors(cmd.Context(), fs)
	}
	if err != nil {
		return err
	}

	ids := make([]string, len(fs))
	outputs := make(map[string]map[string]any)
	all := dk.Outputs()
	for i, f := range fs {
		ids[i] = f.ID
		if out, ok := all[f.ID]; ok && len(out) > 0 {
			outputs[f.ID] = out
		}
	}
	if len(outputs) > 0 {
		if err := a.printer.PrintOutputs(outputs); err != nil {
			return err
		}
	}
	return a.printer.PrintSuccess(fmt.Sprintf("Enrolled [%s] in policy %s", strings.Join(ids, ", "), name))
}

func newRemoveFactorCmd(a *app) *cobra.Command {
	cmd, _ := reconstituteCmd(a, "remove-factor <name> <factor-id>...", "Remove factors from a policy",
		cobra.MinimumNArgs(2),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			if err := dk.RemoveFactors(cmd.Context(), args[1:]); err != nil {
				return err
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Removed [%s] from policy %s",
				strings.Join(args[1:], ", "), args[0]))
		})
	return cmd
}

func newHintCmd(a *app) *cobra.Command {
	var bits int
	cmd, _ := reconstituteCmd(a, "hint <name> <factor-id>", "Store a hint that rejects a wrong factor early",
		cobra.ExactArgs(2),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			if err := dk.AddHint(args[1], bits); err != nil {
				return err
			}
			desc, _ := dk.Policy().Factor(args[1])
			return a.printer.PrintValue("hint", desc.Hint)
		})
	cmd.Flags().IntVar(&bits, "bits", mfkdf.DefaultHintBits, "hint length in bits")
	return cmd
}

func newPersistCmd(a *app) *cobra.Command {
	cmd, _ := reconstituteCmd(a, "persist <name> <factor-id>", "Print a factor's share for use with --persisted",
		cobra.ExactArgs(2),
		func(cmd *cobra.Command, dk *mfkdf.DerivedKey, args []string) error {
			share, err := dk.Persist(args[1])
			if err != nil {
				return err
			}
			return a.printer.PrintValue("share", hex.EncodeToString(share))
		})
	return cmd
}
