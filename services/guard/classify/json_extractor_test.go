// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantField string
		wantValue any
	}{
		{
			name:      "clean JSON",
			input:     `{"is_safe":true,"category":"Normal"}`,
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "JSON with whitespace",
			input:     `   {"is_safe":false}   `,
			wantField: "is_safe",
			wantValue: false,
		},
		{
			name:      "markdown JSON block",
			input:     "```json\n{\"is_safe\":true}\n```",
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "generic code block",
			input:     "```\n{\"is_safe\":true}\n```",
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "JSON with preamble",
			input:     "Here is my analysis:\n{\"is_safe\":true}",
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "JSON with postamble",
			input:     "{\"is_safe\":true}\nHope this helps!",
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "nested braces in string",
			input:     `{"reasoning":"something {with} braces","is_safe":true}`,
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "escaped quotes in string",
			input:     `{"reasoning":"he said \"hello\"","is_safe":true}`,
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:      "nested object",
			input:     `{"outer":{"inner":1},"is_safe":true}`,
			wantField: "is_safe",
			wantValue: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I cannot classify this message.",
			wantErr: true,
		},
		{
			name:    "truncated object",
			input:   `{"is_safe":true,"category":"Nor`,
			wantErr: true,
		},
		{
			name:    "only open brace",
			input:   "{",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(got), &parsed); err != nil {
				t.Fatalf("extracted text is not valid JSON: %v (%q)", err, got)
			}
			if parsed[tt.wantField] != tt.wantValue {
				t.Errorf("field %q = %v, want %v", tt.wantField, parsed[tt.wantField], tt.wantValue)
			}
		})
	}
}
