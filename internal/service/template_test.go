package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		variables map[string]interface{}
		expected  string
	}{
		{
			name:      "substitutes string and number",
			template:  "Hi {name}, fee {amount}",
			variables: map[string]interface{}{"name": "Asha", "amount": 500},
			expected:  "Hi Asha, fee 500",
		},
		{
			name:      "leaves unknown placeholder",
			template:  "Hi {name}, see {foo}",
			variables: map[string]interface{}{"name": "Asha"},
			expected:  "Hi Asha, see {foo}",
		},
		{
			name:      "replaces every occurrence",
			template:  "{name}! {name}!",
			variables: map[string]interface{}{"name": "Ravi"},
			expected:  "Ravi! Ravi!",
		},
		{
			name:      "formats decimals",
			template:  "Due: {amount}",
			variables: map[string]interface{}{"amount": decimal.RequireFromString("1250.50")},
			expected:  "Due: 1250.5",
		},
		{
			name:      "does not expand placeholders inside values",
			template:  "{a} {b}",
			variables: map[string]interface{}{"a": "{b}", "b": "x"},
			expected:  "{b} x",
		},
		{
			name:     "no variables",
			template: "Hello {name}",
			expected: "Hello {name}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RenderTemplate(tc.template, tc.variables))
		})
	}
}
