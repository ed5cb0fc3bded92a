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
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// encodeKey renders key material as hex or base64
func encodeKey(key []byte, encoding string) (string, error) {
	switch encoding {
	case "", "hex":
		return hex.EncodeToString(key), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(key), nil
	default:
		return "", fmt.Errorf("unknown key encoding: %s (must be hex or base64)", encoding)
	}
}

// PrintKey prints a derived key and, when present, the factor outputs
// produced with it
func (p *Printer) PrintKey(name, key string, policy *mfkdf.Policy, outputs map[string]map[string]any) error {
	switch p.format {
	case OutputFormatJSON:
		data := map[string]interface{}{
			"name":      name,
			"policy_id": policy.ID,
			"threshold": policy.Threshold,
			"key":       key,
		}
		if len(outputs) > 0 {
			data["outputs"] = outputs
		}
		return p.printJSON(data)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Policy:    %s (%s)\n", name, policy.ID)
		fmt.Fprintf(p.writer, "Threshold: %d of %d\n", policy.Threshold, len(policy.Factors))
		fmt.Fprintf(p.writer, "Key:       %s\n", key)
		if len(outputs) > 0 {
			fmt.Fprintln(p.writer, "Outputs:")
			p.printOutputs(outputs, "  ")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintOutputs prints enrollment outputs keyed by factor id
func (p *Printer) PrintOutputs(outputs map[string]map[string]any) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"outputs": outputs,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Outputs:")
		p.printOutputs(outputs, "  ")
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printOutputs(outputs map[string]map[string]any, indent string) {
	for _, id := range sortedKeys(outputs) {
		fmt.Fprintf(p.writer, "%s%s:\n", indent, id)
		out := outputs[id]
		for _, k := range sortedKeys(out) {
			fmt.Fprintf(p.writer, "%s  %s: %s\n", indent, k, formatValue(out[k]))
		}
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return hex.EncodeToString(val)
	case string:
		return val
	case map[string]any, map[string]map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// PrintPolicy prints the public structure of a policy
func (p *Printer) PrintPolicy(name string, policy *mfkdf.Policy) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"name":   name,
			"policy": policy,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Policy:    %s\n", name)
		fmt.Fprintf(p.writer, "ID:        %s\n", policy.ID)
		fmt.Fprintf(p.writer, "Size:      %d bytes\n", policy.Size)
		fmt.Fprintf(p.writer, "KDF:       %s\n", policy.KDF.Algorithm)
		fmt.Fprintf(p.writer, "Integrity: %t\n", len(policy.HMAC) > 0)
		fmt.Fprintln(p.writer, "Factors:")
		p.printTree(policy, "  ")
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printTree(policy *mfkdf.Policy, indent string) {
	fmt.Fprintf(p.writer, "%s(%d of %d)\n", indent, policy.Threshold, len(policy.Factors))
	for _, f := range policy.Factors {
		line := fmt.Sprintf("%s- %s [%s]", indent, f.ID, f.Type)
		if f.Hint != "" {
			line += " hint=" + f.Hint
		}
		fmt.Fprintln(p.writer, line)
		if f.IsStack() {
			p.printTree(f.Policy, indent+"    ")
		}
	}
}

// PrintPolicyList prints stored policy names
func (p *Printer) PrintPolicyList(names []string) error {
	switch p.format {
	case OutputFormatJSON:
		if names == nil {
			names = []string{}
		}
		return p.printJSON(map[string]interface{}{
			"policies": names,
		})
	case OutputFormatText:
		if len(names) == 0 {
			fmt.Fprintln(p.writer, "No policies found")
			return nil
		}
		fmt.Fprintln(p.writer, "Policies:")
		for _, n := range names {
			fmt.Fprintf(p.writer, "  - %s\n", n)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintEvaluation prints whether a set of factor ids satisfies a policy
func (p *Printer) PrintEvaluation(name string, ids []string, ok bool) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"name":      name,
			"factors":   ids,
			"satisfied": ok,
		})
	case OutputFormatText:
		verdict := "not satisfied"
		if ok {
			verdict = "satisfied"
		}
		fmt.Fprintf(p.writer, "Policy %s is %s by [%s]\n", name, verdict, strings.Join(ids, ", "))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintValue prints a single named value such as a hint or persisted share
func (p *Printer) PrintValue(field, value string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			field: value,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
			"type":   mfkdf.ErrorType(err),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
