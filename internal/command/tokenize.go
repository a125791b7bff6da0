package command

import (
	"fmt"
	"strings"
)

// Tokenize splits command text into an argv vector with shell-style quoting
// rules: single quotes preserve everything literally, double quotes preserve
// everything except backslash escapes, and an unquoted backslash escapes the
// next character. This deliberately replaces the whitespace split the original
// engine used, which corrupted any quoted argument.
//
// Tokenize does not expand variables, globs, or substitutions; the text is an
// argv, not a shell program.
func Tokenize(text string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inToken bool
	)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\'':
			inToken = true
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				cur.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated single quote")
			}
			i = j
		case '"':
			inToken = true
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				cur.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated double quote")
			}
			i = j
		case '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("trailing backslash")
			}
			inToken = true
			i++
			cur.WriteRune(runes[i])
		case ' ', '\t', '\n', '\r':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			inToken = true
			cur.WriteRune(c)
		}
	}
	if inToken {
		args = append(args, cur.String())
	}

	return args, nil
}

// Sanitize strips the chaining and substitution metacharacters (&&, ||, ;,
// backticks, $( and its closing paren) from command text before validation
// and argv execution. Metacharacters inside quoted regions are preserved:
// unlike the original engine, a semicolon in a commit message survives.
//
// This is a heuristic injection mitigation, not a shell grammar. Commands
// that legitimately need chaining must run in shell mode, where the text is
// passed through untouched.
func Sanitize(text string) string {
	var (
		out      strings.Builder
		subDepth int
	)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\'', '"':
			quote := c
			out.WriteRune(c)
			j := i + 1
			for j < len(runes) {
				out.WriteRune(runes[j])
				if runes[j] == '\\' && quote == '"' && j+1 < len(runes) {
					j++
					out.WriteRune(runes[j])
				} else if runes[j] == quote {
					break
				}
				j++
			}
			i = j
		case '&', '|':
			if i+1 < len(runes) && runes[i+1] == c {
				i++ // drop && and ||
			} else {
				out.WriteRune(c)
			}
		case ';', '`':
			// dropped
		case '$':
			if i+1 < len(runes) && runes[i+1] == '(' {
				subDepth++
				i++
			} else {
				out.WriteRune(c)
			}
		case ')':
			if subDepth > 0 {
				subDepth--
			} else {
				out.WriteRune(c)
			}
		default:
			out.WriteRune(c)
		}
	}

	return strings.TrimSpace(out.String())
}
