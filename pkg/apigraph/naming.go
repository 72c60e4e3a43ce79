/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: naming.go
Description: Naming heuristics for resource inference. Provides pluralization and
singularization with irregular-word handling, case conversion, URL-path resource
naming, and resource-to-parameter matching. Everything here is best-effort string
matching: a miss means no edge is created, never an error.
*/

package apigraph

import (
	"strings"
	"unicode"
)

// irregularPlurals maps singular forms to plurals that suffix rules get wrong.
var irregularPlurals = map[string]string{
	"person":    "people",
	"child":     "children",
	"man":       "men",
	"woman":     "women",
	"foot":      "feet",
	"tooth":     "teeth",
	"goose":     "geese",
	"mouse":     "mice",
	"ox":        "oxen",
	"index":     "indices",
	"criterion": "criteria",
	"leaf":      "leaves",
	"half":      "halves",
	"knife":     "knives",
	"life":      "lives",
	"status":    "statuses",
}

// irregularSingulars is the reverse lookup of irregularPlurals.
var irregularSingulars = func() map[string]string {
	m := make(map[string]string, len(irregularPlurals))
	for singular, plural := range irregularPlurals {
		m[plural] = singular
	}
	return m
}()

// uncountables are words with no distinct plural form.
var uncountables = map[string]bool{
	"information": true,
	"equipment":   true,
	"money":       true,
	"series":      true,
	"species":     true,
	"sheep":       true,
	"fish":        true,
	"deer":        true,
	"news":        true,
	"media":       true,
	"data":        true,
	"metadata":    true,
}

// identifierSynonyms are common identifier parameter suffixes.
var identifierSynonyms = map[string]bool{
	"id":   true,
	"uuid": true,
	"guid": true,
	"uid":  true,
}

// Pluralize returns the plural form of a lowercase word.
func Pluralize(word string) string {
	lower := strings.ToLower(word)
	if uncountables[lower] {
		return word
	}
	if plural, ok := irregularPlurals[lower]; ok {
		return plural
	}
	switch {
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"), strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

// Singularize returns the singular form of a lowercase word.
func Singularize(word string) string {
	lower := strings.ToLower(word)
	if uncountables[lower] {
		return word
	}
	if singular, ok := irregularSingulars[lower]; ok {
		return singular
	}
	if _, ok := irregularPlurals[lower]; ok {
		// Already a known singular ("status" must not become "statu").
		return word
	}
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ses"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"), strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// splitWords breaks an identifier into lowercase words on underscores,
// hyphens, dots, spaces, and camelCase boundaries.
func splitWords(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			// Boundary before an uppercase rune that follows a lowercase
			// one, or that precedes a lowercase one in an acronym run.
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				flush()
			} else if i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]) {
				flush()
			}
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

// PascalCase converts an identifier to PascalCase.
func PascalCase(s string) string {
	var b strings.Builder
	for _, word := range splitWords(s) {
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	return b.String()
}

// SnakeCase converts an identifier to snake_case.
func SnakeCase(s string) string {
	return strings.Join(splitWords(s), "_")
}

// PluralizeSnake returns the snake_case form of a name with its last word
// pluralized, e.g. "UserGroup" -> "user_groups".
func PluralizeSnake(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = Pluralize(words[len(words)-1])
	return strings.Join(words, "_")
}

// normalizeName lowercases an identifier and strips separators so that
// "user_id", "userId", and "UserID" all compare equal.
func normalizeName(s string) string {
	return strings.Join(splitWords(s), "")
}

// selfSegments are path suffixes that refer back to the parent resource.
var selfSegments = map[string]bool{"self": true, "me": true, "current": true}

// PathResourceName derives a resource name from a URL path: the last
// non-parameter segment, singularized and PascalCased. "self"/"me"/
// "current" suffixes fall back to the parent segment. Returns "" when the
// path has no usable segment.
func PathResourceName(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var candidates []string
	for _, seg := range segments {
		if seg == "" || isPathParameter(seg) {
			continue
		}
		candidates = append(candidates, seg)
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if selfSegments[strings.ToLower(candidates[i])] {
			continue
		}
		return PascalCase(Singularize(candidates[i]))
	}
	return ""
}

// pathResourceCandidates returns, in order of appearance, the resource
// name derived from each non-parameter path segment, paired with the
// segment index it came from. Self-referencing segments are skipped.
type pathCandidate struct {
	segmentIndex int
	name         string
}

func pathResourceCandidates(path string) []pathCandidate {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var candidates []pathCandidate
	for i, seg := range segments {
		if seg == "" || isPathParameter(seg) || selfSegments[strings.ToLower(seg)] {
			continue
		}
		name := PascalCase(Singularize(seg))
		if name == "" {
			continue
		}
		candidates = append(candidates, pathCandidate{segmentIndex: i, name: name})
	}
	return candidates
}

func isPathParameter(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// MatchParameter decides whether a parameter name refers to a field of the
// given resource. Tried in order: exact field match, case/separator
// insensitive match, resource-name-prefix-stripped match ("channelId" ->
// Channel.id), composite "..._id_or_slug" handling, and bare identifier
// synonyms. Returns the matched field name.
func MatchParameter(resourceName string, fields []string, param string) (string, bool) {
	for _, f := range fields {
		if f == param {
			return f, true
		}
	}
	normalized := normalizeName(param)
	for _, f := range fields {
		if normalizeName(f) == normalized {
			return f, true
		}
	}
	resource := normalizeName(resourceName)
	if resource != "" && strings.HasPrefix(normalized, resource) && len(normalized) > len(resource) {
		rest := normalized[len(resource):]
		for _, f := range fields {
			if normalizeName(f) == rest {
				return f, true
			}
		}
		if identifierSynonyms[rest] {
			return matchIdentifier(fields, rest), true
		}
		if rest == "idorslug" {
			return matchIDOrSlug(fields), true
		}
	}
	if normalized == "idorslug" {
		return matchIDOrSlug(fields), true
	}
	if identifierSynonyms[normalized] {
		return matchIdentifier(fields, normalized), true
	}
	return "", false
}

// matchIdentifier prefers a declared field from the identifier synonym
// group over the literal parameter suffix, so "userId" binds to a
// resource that only declares "uuid".
func matchIdentifier(fields []string, fallback string) string {
	for _, f := range fields {
		if identifierSynonyms[normalizeName(f)] {
			return f
		}
	}
	return fallback
}

// matchIDOrSlug prefers a declared id field, then slug, defaulting to id.
func matchIDOrSlug(fields []string) string {
	for _, f := range fields {
		if normalizeName(f) == "id" {
			return f
		}
	}
	for _, f := range fields {
		if normalizeName(f) == "slug" {
			return f
		}
	}
	return "id"
}
