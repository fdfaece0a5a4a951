package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		expr   string
		expect []string
	}{
		{"count", []string{"count"}},
		{"user.name", []string{"user"}},
		{"count > 0 && open", []string{"count", "open"}},
		{"items.length === 0 ? 'none' : label", []string{"items", "label"}},
		{"{active: isOn, 'is-big': size > 10}", []string{"active", "isOn", "size"}},
		{"'count' + other", []string{"other"}},
		{"1.5e3 + x", []string{"x"}},
		{"$event.value", []string{"$event"}},
		{"a.b.c + a.d", []string{"a"}},
		{"null == missing || true", []string{"missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.expect, Identifiers(tt.expr))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		src    string
		d      dialect
		expect string
	}{
		{"a === null && b !== 'x === y'", exprDialect, "a == nil && b != 'x === y'"},
		{"$event.value", exprDialect, "dollar_event.value"},
		{"x.undefined", celDialect, "x.undefined"},
		{"items.length > 0", exprDialect, "float(len(items)) > 0"},
		{"items.length > 0", celDialect, "double(size(items)) > 0"},
		{"user.tags.length + other.length", exprDialect, "float(len(user.tags)) + float(len(other))"},
		{"$event.value.length", exprDialect, "float(len(dollar_event.value))"},
		{"'items.length'", exprDialect, "'items.length'"},
		{"obj.length()", exprDialect, "obj.length()"},
		{"(a).length", exprDialect, "(a).length"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expect, normalize(tt.src, tt.d))
		})
	}
}
