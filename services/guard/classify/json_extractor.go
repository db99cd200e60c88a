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
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be located in a model reply.
var ErrNoJSON = errors.New("classify: no JSON object found in reply")

// ExtractJSON locates and returns the first complete JSON object in an LLM
// reply.
//
// Description:
//
//	Models routinely wrap JSON in markdown fences, preamble ("Here is my
//	analysis:"), or postamble ("Hope this helps!"). This function strips
//	fences, then scans for the first balanced {...} object, tracking string
//	literals and escape sequences so braces inside strings don't confuse
//	the match. It does not validate the object against any schema; callers
//	unmarshal the returned slice themselves.
//
// Inputs:
//   - reply: Raw model reply text.
//
// Outputs:
//   - string: The first balanced JSON object.
//   - error: ErrNoJSON when no complete object is present (including
//     truncated replies that open a brace but never close it).
func ExtractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if s == "" {
		return "", ErrNoJSON
	}

	// Strip markdown code fences (```json ... ``` or plain ``` ... ```).
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if firstLine == "json" || firstLine == "" {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSON
}
