package expression

import (
	"fmt"
	"strings"
)

// StatementKind distinguishes the forms of the action-dispatch grammar.
type StatementKind int

const (
	// Call invokes a named method: name(arg, ...) or bare name.
	Call StatementKind = iota
	// Assign writes a state key: key = expression.
	Assign
)

// Statement is one parsed action-dispatch statement.
type Statement struct {
	Kind StatementKind
	Name string
	Args []string
	Expr string
}

// ParseStatements parses an event attribute value: statements separated by
// ';', each either a call or an assignment.
func ParseStatements(src string) ([]Statement, error) {
	var out []Statement
	for _, part := range splitTopLevel(src, ';') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		stmt, err := parseStatement(part)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func parseStatement(s string) (Statement, error) {
	if idx := assignIndex(s); idx > 0 {
		key := strings.TrimSpace(s[:idx])
		rhs := strings.TrimSpace(s[idx+1:])
		if !IsPath(key) || strings.Contains(key, ".") || rhs == "" {
			return Statement{}, fmt.Errorf("%w: %q", ErrInvalidStatement, s)
		}
		return Statement{Kind: Assign, Name: key, Expr: rhs}, nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if !IsPath(s) || strings.Contains(s, ".") {
			return Statement{}, fmt.Errorf("%w: %q", ErrInvalidStatement, s)
		}
		return Statement{Kind: Call, Name: s}, nil
	}
	name := strings.TrimSpace(s[:open])
	if !IsPath(name) || strings.Contains(name, ".") || !strings.HasSuffix(s, ")") {
		return Statement{}, fmt.Errorf("%w: %q", ErrInvalidStatement, s)
	}
	if closeIdx := matchParen(s, open); closeIdx != len(s)-1 {
		return Statement{}, fmt.Errorf("%w: %q", ErrInvalidStatement, s)
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	var args []string
	if inner != "" {
		for _, a := range splitTopLevel(inner, ',') {
			a = strings.TrimSpace(a)
			if a == "" {
				return Statement{}, fmt.Errorf("%w: empty argument in %q", ErrInvalidStatement, s)
			}
			args = append(args, a)
		}
	}
	return Statement{Kind: Call, Name: name, Args: args}, nil
}

// assignIndex finds a top-level single '=' that is not part of a comparison.
func assignIndex(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = scanString(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '=' && depth == 0:
			if i+1 < len(s) && s[i+1] == '=' {
				return -1
			}
			if i > 0 && strings.ContainsRune("=!<>", rune(s[i-1])) {
				return -1
			}
			return i
		}
	}
	return -1
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = scanString(s, i) - 1
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on sep outside strings and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = scanString(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// Scope is what a dispatched statement acts on.
type Scope interface {
	// State returns the snapshot arguments are evaluated against.
	State() map[string]any
	// Invoke calls a custom or built-in method.
	Invoke(name string, args []any) error
	// Assign writes a state key.
	Assign(key string, value any)
}

// Run parses src and executes each statement against scope. locals (such as
// $event) are visible to argument expressions in addition to state.
// Statements run in order; the first failing statement stops the run.
func (e *Evaluator) Run(src string, scope Scope, locals map[string]any) error {
	stmts, err := ParseStatements(src)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		env := scope.State()
		if len(locals) > 0 {
			merged := make(map[string]any, len(env)+len(locals))
			for k, v := range env {
				merged[k] = v
			}
			for k, v := range locals {
				merged[k] = v
			}
			env = merged
		}
		switch stmt.Kind {
		case Assign:
			v, err := e.Raw(stmt.Expr, env)
			if err != nil {
				return err
			}
			scope.Assign(stmt.Name, v)
		case Call:
			args := make([]any, 0, len(stmt.Args))
			for _, a := range stmt.Args {
				v, err := e.Raw(a, env)
				if err != nil {
					return err
				}
				args = append(args, v)
			}
			if err := scope.Invoke(stmt.Name, args); err != nil {
				return err
			}
		}
	}
	return nil
}
