// Package query compiles and runs jq programs against record text.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/itchyny/gojq"

	"github.com/mcncl/dbusjq/internal/jsoncodec"
)

// Options controls how a program is compiled and how its results are printed.
type Options struct {
	// Variables are exposed to the program as $name. Names are normalized
	// to snake_case, so "objectPath" and "object-path" both become
	// $object_path.
	Variables map[string]string
	// RawOutput prints string results without JSON quoting, like jq -r.
	RawOutput bool
}

// Program is a compiled jq query. It is safe to run repeatedly.
type Program struct {
	code   *gojq.Code
	values []any
	raw    bool
}

// Compile parses and compiles expr.
func Compile(expr string, opts Options) (*Program, error) {
	if strings.TrimSpace(expr) == "" {
		expr = "."
	}

	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse jq query %q: %w", expr, err)
	}

	names, values := variables(opts.Variables)
	code, err := gojq.Compile(parsed,
		gojq.WithVariables(names),
		gojq.WithEnvironLoader(os.Environ),
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't compile jq query %q: %w", expr, err)
	}

	return &Program{code: code, values: values, raw: opts.RawOutput}, nil
}

// VariableName returns the jq variable a configured name is exposed as.
func VariableName(name string) string {
	return "$" + strcase.ToSnake(name)
}

func variables(vars map[string]string) ([]string, []any) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	values := make([]any, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		name := VariableName(key)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		values = append(values, vars[key])
	}
	return names, values
}

// Run feeds one JSON document to the program. Every emitted value is
// written on its own line, each followed by a newline, as jq does.
func (p *Program) Run(ctx context.Context, input string) (string, error) {
	var document any
	if err := jsoncodec.UnmarshalNumbers(input, &document); err != nil {
		return "", fmt.Errorf("couldn't parse query input: %w", err)
	}

	var out strings.Builder
	iter := p.code.RunWithContext(ctx, normalizeNumbers(document), p.values...)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return "", err
		}
		if s, isString := v.(string); isString && p.raw {
			out.WriteString(s)
		} else {
			encoded, err := gojq.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("couldn't encode query result: %w", err)
			}
			out.Write(encoded)
		}
		out.WriteByte('\n')
	}
	return out.String(), nil
}

// normalizeNumbers converts json.Number into the numeric types gojq works
// with: int when it fits, *big.Int for wider integers and float64 otherwise.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		text := x.String()
		if i, err := strconv.ParseInt(text, 10, 0); err == nil {
			return int(i)
		}
		if n, ok := new(big.Int).SetString(text, 10); ok {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return text
	case map[string]any:
		for key, value := range x {
			x[key] = normalizeNumbers(value)
		}
		return x
	case []any:
		for i, value := range x {
			x[i] = normalizeNumbers(value)
		}
		return x
	default:
		return v
	}
}
