/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: jsonpointer.go
Description: RFC 6901 JSON pointer resolution over decoded JSON values, plus
canonical serialization helpers used for variant deduplication keys. A missing
target is an ordinary outcome here, reported via the boolean, never an error.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ResolvePointer navigates a decoded JSON document by JSON pointer.
// The second return is false when the pointer has no target (missing key,
// index out of range, scalar in the way). "" and "/" both address the
// document root.
func ResolvePointer(doc interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return doc, true
	}
	current := doc
	for _, token := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[token]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// CanonicalJSON serializes a value deterministically (encoding/json sorts
// map keys), suitable as a deduplication key.
func CanonicalJSON(value interface{}) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("!unserializable:%v", value)
	}
	return string(raw)
}

// ValueKey builds a type-aware deduplication key for a single observed
// value, so the string "1" and the number 1 stay distinct.
func ValueKey(value interface{}) string {
	return fmt.Sprintf("%T|%s", value, CanonicalJSON(value))
}
