package descriptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/learningequality/bundlegen/internal/plugins"
)

// ResolveCacheKey renders the minifier cache key of one bundle. Expressions
// holding a bundle placeholder are templates: environment variables are
// expanded, then placeholders replaced. Otherwise an expression that compiles
// as a single safe Rego expression is evaluated with input {name, version}.
// Anything else, bare words such as "kolibri" or "v2" included, is a plain
// string with environment expansion.
func ResolveCacheKey(ctx context.Context, expr string, meta Metadata) (string, error) {
	if expr == "" {
		return "", nil
	}

	if strings.Contains(expr, plugins.BundlePlaceholder) || strings.Contains(expr, plugins.VersionPlaceholder) {
		return plugins.Placeholders(meta.Name, meta.Version)(os.ExpandEnv(expr)), nil
	}

	if query, ok := looksLikeRego(expr); ok {
		pq, err := rego.New(rego.ParsedQuery(query)).PrepareForEval(ctx)
		switch {
		case unsafeQuery(err):
		case err != nil:
			return "", fmt.Errorf("cache key %q: rego compilation failed: %w", expr, err)
		default:
			input := map[string]any{"name": meta.Name, "version": meta.Version}
			result, err := evaluateRego(ctx, pq, input)
			if err != nil {
				return "", fmt.Errorf("cache key %q: rego evaluation failed: %w", expr, err)
			}
			return result, nil
		}
	}

	return os.ExpandEnv(expr), nil
}

func looksLikeRego(s string) (ast.Body, bool) {
	body, err := ast.ParseBody(s)
	if err != nil {
		return nil, false
	}
	return body, len(body) == 1
}

// unsafeQuery reports whether err only stems from variables no rule or input
// binds, which is how a bare word parses.
func unsafeQuery(err error) bool {
	var errs ast.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Code != ast.UnsafeVarErr {
			return false
		}
	}
	return true
}

func evaluateRego(ctx context.Context, pq rego.PreparedEvalQuery, input map[string]any) (string, error) {
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", errors.New("expression is undefined")
	}
	return formatValue(rs[0].Expressions[0].Value), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case ast.Number:
		if i, ok := val.Int(); ok {
			return strconv.Itoa(i)
		}
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
