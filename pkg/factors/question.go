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

package factors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-mfkdf/internal/password"
	"github.com/jeremyhahn/go-mfkdf/pkg/mfkdf"
)

// TypeQuestion is the factor type of a security question
const TypeQuestion = "question"

// QuestionOptions configures a security question factor
type QuestionOptions struct {
	// ID defaults to "question"
	ID string

	// Question is stored in the clear so it can be shown on derive
	Question string
}

type questionParams struct {
	Question string `json:"question"`
}

// Question sets up a security question factor. Answers are normalized, so
// "Fido!" and " fido" derive the same material.
func Question(answer string, opts QuestionOptions) (*mfkdf.SetupFactor, error) {
	secret, err := password.NewAnswer(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	defer secret.Clear()

	id := opts.ID
	if id == "" {
		id = TypeQuestion
	}
	question := opts.Question
	return &mfkdf.SetupFactor{
		Type: TypeQuestion,
		ID:   id,
		Data: secret.Bytes(),
		Params: func(context.Context, mfkdf.ParamsContext) (json.RawMessage, error) {
			return json.Marshal(questionParams{Question: question})
		},
		Output: func(context.Context) (map[string]any, error) {
			return map[string]any{"question": question}, nil
		},
	}, nil
}

// DeriveQuestion derives a security question factor
func DeriveQuestion(answer string) mfkdf.DeriveFactor {
	return func(_ context.Context, in *mfkdf.FactorInput) (*mfkdf.DerivedFactor, error) {
		secret, err := password.NewAnswer(answer)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		defer secret.Clear()

		var params questionParams
		if err := json.Unmarshal(in.Params, &params); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		return &mfkdf.DerivedFactor{
			Type: TypeQuestion,
			Data: secret.Bytes(),
			Output: func(context.Context) (map[string]any, error) {
				return map[string]any{"question": params.Question}, nil
			},
		}, nil
	}
}

// QuestionText returns the question stored in a question factor's params
func QuestionText(f *mfkdf.Factor) (string, error) {
	if f == nil || f.Type != TypeQuestion {
		return "", fmt.Errorf("%w: not a question factor", ErrInvalidParams)
	}
	var params questionParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return params.Question, nil
}
