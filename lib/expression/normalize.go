package expression

import "strings"

// dollarPrefix replaces a leading '$' in identifiers; neither engine accepts
// '$' as an identifier character.
const dollarPrefix = "dollar_"

// envKey maps a state or scope key onto the identifier the engines see.
func envKey(k string) string {
	if strings.HasPrefix(k, "$") {
		return dollarPrefix + k[1:]
	}
	return k
}

// dialect holds the engine-specific spellings normalize emits.
type dialect struct {
	nilLiteral string
	// lenOpen and lenClose wrap an operand to yield its length as a float64.
	lenOpen, lenClose string
}

var (
	exprDialect = dialect{nilLiteral: "nil", lenOpen: "float(len(", lenClose: "))"}
	celDialect  = dialect{nilLiteral: "null", lenOpen: "double(size(", lenClose: "))"}
)

// normalize rewrites JavaScript-flavoured tokens outside string literals:
// strict (in)equality, null/undefined literals, '$' identifiers and a
// .length member on an identifier path (items.length, user.tags.length).
func normalize(src string, d dialect) string {
	var sb strings.Builder
	sb.Grow(len(src) + 8)
	// chain is where the current identifier path starts in sb, or -1.
	chain := -1
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := scanString(src, i)
			sb.WriteString(src[i:end])
			i = end
			chain = -1
		case c == '=' && strings.HasPrefix(src[i:], "==="):
			sb.WriteString("==")
			i += 3
			chain = -1
		case c == '!' && strings.HasPrefix(src[i:], "!=="):
			sb.WriteString("!=")
			i += 3
			chain = -1
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			prevDot := i > 0 && src[i-1] == '.'
			switch {
			case prevDot && word == "length" && chain >= 0 && !calledAt(src, j):
				out := sb.String()
				operand := out[chain : len(out)-1]
				sb.Reset()
				sb.WriteString(out[:chain])
				sb.WriteString(d.lenOpen + operand + d.lenClose)
				chain = -1
			case !prevDot && (word == "null" || word == "undefined"):
				sb.WriteString(d.nilLiteral)
				chain = -1
			case word[0] == '$':
				if !prevDot {
					chain = sb.Len()
				}
				sb.WriteString(dollarPrefix + word[1:])
			default:
				if !prevDot {
					chain = sb.Len()
				}
				sb.WriteString(word)
			}
			i = j
		case c == '.' && chain >= 0 && i > 0 && isIdentPart(src[i-1]):
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
			chain = -1
		}
	}
	return sb.String()
}

// calledAt reports whether a call's opening parenthesis follows index i.
func calledAt(src string, i int) bool {
	for ; i < len(src); i++ {
		switch src[i] {
		case ' ', '\t', '\n':
			continue
		case '(':
			return true
		}
		return false
	}
	return false
}

// scanString returns the index just past the string literal starting at i.
func scanString(src string, i int) int {
	quote := src[i]
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		}
		j++
	}
	return len(src)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

var keywords = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true, "nil": true,
	"in": true, "not": true, "and": true, "or": true, "matches": true,
	"contains": true, "startsWith": true, "endsWith": true, "typeof": true,
}

// Identifiers returns the distinct root identifiers expression reads, in
// order of first appearance. Member names after '.' and literals are
// skipped; object-literal keys are included, so the result may overstate
// what the expression depends on but never understates it.
func Identifiers(expression string) []string {
	var out []string
	seen := make(map[string]bool)
	src := expression
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = scanString(src, i)
		case c >= '0' && c <= '9':
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if !precededByDot(src, i) && !keywords[word] && !seen[word] {
				seen[word] = true
				out = append(out, word)
			}
			i = j
		default:
			i++
		}
	}
	return out
}

func precededByDot(src string, i int) bool {
	for i--; i >= 0; i-- {
		switch src[i] {
		case ' ', '\t', '\n':
			continue
		case '.':
			return !(i > 0 && src[i-1] == '.')
		}
		return false
	}
	return false
}
