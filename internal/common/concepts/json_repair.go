package concepts

import (
	"strings"
	"unicode"
)

// stripFences removes markdown code fences and any prose around the outermost object.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// repairJSON fixes the key quoting mistakes models make (`{P: [...]}`, `{P": [...]}`)
// and drops trailing commas. String contents are never modified.
func repairJSON(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped, expectKey := false, false, false
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if inString {
			b.WriteRune(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
			expectKey = false
			b.WriteRune(ch)

		case ch == ',':
			if next := nextNonSpace(runes, i+1); next == ']' || next == '}' {
				continue
			}
			expectKey = true
			b.WriteRune(ch)

		case ch == '{':
			expectKey = true
			b.WriteRune(ch)

		case unicode.IsSpace(ch):
			b.WriteRune(ch)

		case expectKey && isKeyRune(ch):
			j := i
			for j < len(runes) && isKeyRune(runes[j]) {
				j++
			}
			k := j
			if k < len(runes) && runes[k] == '"' {
				k++
			}
			if nextNonSpace(runes, k) == ':' {
				b.WriteRune('"')
				b.WriteString(string(runes[i:j]))
				b.WriteRune('"')
				i = k - 1
			} else {
				b.WriteRune(ch)
			}
			expectKey = false

		default:
			expectKey = false
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func nextNonSpace(runes []rune, from int) rune {
	for i := from; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			return runes[i]
		}
	}
	return 0
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
