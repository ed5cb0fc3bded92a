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
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-mfkdf/pkg/factors"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
	"gopkg.in/yaml.v3"
)

// FactorFile is the YAML document read by setup, add-factor and recover
type FactorFile struct {
	// Threshold applies to setup only. Zero requires every factor.
	Threshold int          `yaml:"threshold"`
	Factors   []FactorSpec `yaml:"factors"`
}

// FactorSpec describes one factor to enroll. Which fields apply depends on
// Type.
type FactorSpec struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`

	// Value is the password, answer, recovery code or hex passkey secret
	Value    string `yaml:"value"`
	Question string `yaml:"question"`

	// Secret is the base32 OTP secret or hex HMAC-SHA1 secret. Empty
	// generates one.
	Secret string `yaml:"secret"`
	Digits int    `yaml:"digits"`
	Hash   string `yaml:"hash"`
	Step   int    `yaml:"step"`
	Window int    `yaml:"window"`
	Issuer string `yaml:"issuer"`
	Label  string `yaml:"label"`

	// Key is the path of the delivery service's public JWK (ooba)
	Key    string         `yaml:"key"`
	Length int            `yaml:"length"`
	Params map[string]any `yaml:"params"`

	// Threshold and Factors describe a stack
	Threshold int          `yaml:"threshold"`
	Factors   []FactorSpec `yaml:"factors"`
}

// LoadFactorFile reads and parses a factor file
func LoadFactorFile(path string) (*FactorFile, error) {
	// #nosec G304 - factor file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read factor file: %w", err)
	}
	var ff FactorFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse factor file: %w", err)
	}
	if len(ff.Factors) == 0 {
		return nil, fmt.Errorf("factor file %s lists no factors", path)
	}
	return &ff, nil
}

// buildFactors turns specs into setup factors. now seeds TOTP factors.
func buildFactors(ctx context.Context, specs []FactorSpec, now time.Time) ([]*mfkdf.SetupFactor, error) {
	out := make([]*mfkdf.SetupFactor, 0, len(specs))
	for i := range specs {
		f, err := buildFactor(ctx, &specs[i], now)
		if err != nil {
			name := specs[i].ID
			if name == "" {
				name = specs[i].Type
			}
			return nil, fmt.Errorf("factor %d (%s): %w", i+1, name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func buildFactor(ctx context.Context, s *FactorSpec, now time.Time) (*mfkdf.SetupFactor, error) {
	switch s.Type {
	case factors.TypePassword:
		return factors.Password(s.Value, factors.PasswordOptions{ID: s.ID})
	case factors.TypeQuestion:
		return factors.Question(s.Value, factors.QuestionOptions{ID: s.ID, Question: s.Question})
	case factors.TypeUUID:
		return factors.UUID(factors.UUIDOptions{ID: s.ID, UUID: s.Value})
	case factors.TypeHOTP:
		secret, err := decodeOTPSecret(s.Secret)
		if err != nil {
			return nil, err
		}
		return factors.HOTP(factors.HOTPOptions{
			ID: s.ID, Secret: secret, Digits: s.Digits, Hash: s.Hash,
			Issuer: s.Issuer, Label: s.Label,
		})
	case factors.TypeTOTP:
		secret, err := decodeOTPSecret(s.Secret)
		if err != nil {
			return nil, err
		}
		return factors.TOTP(factors.TOTPOptions{
			ID: s.ID, Secret: secret, Digits: s.Digits, Hash: s.Hash,
			Step: s.Step, Window: s.Window, Time: now,
			Issuer: s.Issuer, Label: s.Label,
		})
	case factors.TypeHMACSHA1:
		var secret []byte
		if s.Secret != "" {
			b, err := hex.DecodeString(s.Secret)
			if err != nil {
				return nil, fmt.Errorf("invalid hmacsha1 secret: %w", err)
			}
			secret = b
		}
		return factors.HMACSHA1(factors.HMACSHA1Options{ID: s.ID, Secret: secret})
	case factors.TypePasskey:
		prf, err := hex.DecodeString(s.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid passkey secret: %w", err)
		}
		return factors.Passkey(prf, factors.PasskeyOptions{ID: s.ID})
	case factors.TypeOOBA:
		key, err := loadJWK(s.Key)
		if err != nil {
			return nil, err
		}
		return factors.OOBA(factors.OOBAOptions{ID: s.ID, Key: key, Length: s.Length, Params: s.Params})
	case mfkdf.TypeStack:
		members, err := buildFactors(ctx, s.Factors, now)
		if err != nil {
			return nil, err
		}
		opts := []mfkdf.Option{}
		if s.ID != "" {
			opts = append(opts, mfkdf.WithFactorID(s.ID))
		}
		if s.Threshold > 0 {
			opts = append(opts, mfkdf.WithThreshold(s.Threshold))
		}
		return mfkdf.Stack(ctx, members, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", mfkdf.ErrUnsupportedFactor, s.Type)
	}
}

// decodeOTPSecret accepts the base32 form authenticator apps display, with
// or without padding and spaces
func decodeOTPSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	clean := strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	clean = strings.TrimRight(clean, "=")
	b, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid base32 otp secret: %w", err)
	}
	return b, nil
}

func loadJWK(path string) (*jose.JSONWebKey, error) {
	if path == "" {
		return nil, fmt.Errorf("ooba factors require a key file")
	}
	// #nosec G304 - key file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	return &key, nil
}

// parseDeriveInputs maps id=value arguments onto the derive-side factor of
// the slot each id names. Leaves inside stacks are addressed by their own
// id.
func parseDeriveInputs(policy *mfkdf.Policy, values, persisted []string, now time.Time) (map[string]mfkdf.DeriveFactor, error) {
	inputs := make(map[string]mfkdf.DeriveFactor, len(values)+len(persisted))
	for _, arg := range persisted {
		id, value, err := splitArg(arg)
		if err != nil {
			return nil, err
		}
		share, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid persisted share for %q: %w", id, err)
		}
		if findFactor(policy, id) == nil {
			return nil, fmt.Errorf("%w: %q", mfkdf.ErrUnknownFactor, id)
		}
		inputs[id] = factors.Persisted(share)
	}
	for _, arg := range values {
		id, value, err := splitArg(arg)
		if err != nil {
			return nil, err
		}
		f := findFactor(policy, id)
		if f == nil {
			return nil, fmt.Errorf("%w: %q", mfkdf.ErrUnknownFactor, id)
		}
		if _, dup := inputs[id]; dup {
			return nil, fmt.Errorf("%w: %q given more than once", mfkdf.ErrDuplicateID, id)
		}
		fn, err := deriveInput(f.Type, value, now)
		if err != nil {
			return nil, fmt.Errorf("factor %q: %w", id, err)
		}
		inputs[id] = fn
	}
	return inputs, nil
}

func deriveInput(typ, value string, now time.Time) (mfkdf.DeriveFactor, error) {
	switch typ {
	case factors.TypePassword:
		return factors.DerivePassword(value), nil
	case factors.TypeQuestion:
		return factors.DeriveQuestion(value), nil
	case factors.TypeUUID:
		return factors.DeriveUUID(value), nil
	case factors.TypeHOTP:
		code, err := factors.ParseCode(value)
		if err != nil {
			return nil, err
		}
		return factors.DeriveHOTP(code), nil
	case factors.TypeTOTP:
		code, err := factors.ParseCode(value)
		if err != nil {
			return nil, err
		}
		return factors.DeriveTOTP(code, factors.TOTPDeriveOptions{Time: now}), nil
	case factors.TypeHMACSHA1:
		response, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hmacsha1 response: %w", err)
		}
		return factors.DeriveHMACSHA1(response), nil
	case factors.TypePasskey:
		prf, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid passkey secret: %w", err)
		}
		return factors.DerivePasskey(prf), nil
	case factors.TypeOOBA:
		return factors.DeriveOOBA(value), nil
	case mfkdf.TypeStack:
		return nil, fmt.Errorf("stacks are derived from their member factors")
	default:
		return nil, fmt.Errorf("%w: %q", mfkdf.ErrUnsupportedFactor, typ)
	}
}

func splitArg(arg string) (string, string, error) {
	id, value, ok := strings.Cut(arg, "=")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid factor argument %q, expected id=value", arg)
	}
	return id, value, nil
}

// findFactor searches the policy tree for the slot with the given id
func findFactor(policy *mfkdf.Policy, id string) *mfkdf.Factor {
	if policy == nil {
		return nil
	}
	for _, f := range policy.Factors {
		if f.ID == id {
			return f
		}
		if f.IsStack() {
			if found := findFactor(f.Policy, id); found != nil {
				return found
			}
		}
	}
	return nil
}
