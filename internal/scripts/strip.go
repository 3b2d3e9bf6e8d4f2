package scripts

import "strings"

// stripCommentsAndStrings removes SQL line comments (--), block comments
// (/* */), and single/double-quoted string literals, replacing each with
// a single space, so the regex passes below never match keywords that
// only appear inside a literal or a comment (spec.md §9's tokenize note
// for both risk-rating and dependency extraction).
func stripCommentsAndStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	n := len(runes)
	for i := 0; i < n; i++ {
		c := runes[i]

		if c == '-' && i+1 < n && runes[i+1] == '-' {
			for i < n && runes[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			if i < n {
				b.WriteRune(runes[i])
			}
			continue
		}

		if c == '/' && i+1 < n && runes[i+1] == '*' {
			i += 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++ // land on the closing '/'
			b.WriteByte(' ')
			continue
		}

		if c == '\'' || c == '"' {
			quote := c
			i++
			for i < n {
				if runes[i] == quote {
					if i+1 < n && runes[i+1] == quote {
						i += 2 // escaped quote ('')
						continue
					}
					break
				}
				i++
			}
			b.WriteByte(' ')
			continue
		}

		b.WriteRune(c)
	}
	return b.String()
}
