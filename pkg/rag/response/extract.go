package response

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

// eachJSON hands every JSON object or array found in raw model output to
// accept, fenced blocks first, until accept returns true. Comments and
// trailing commas are tolerated. It reports whether any value was seen.
func eachJSON(raw string, accept func(json.RawMessage) bool) (seen bool) {
	visit := func(s string) bool {
		for i := 0; i < len(s); i++ {
			if s[i] != '{' && s[i] != '[' {
				continue
			}
			v, ok := decodeAt(s[i:])
			if !ok {
				continue
			}
			seen = true
			if accept(v) {
				return true
			}
		}
		return false
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		if visit(m[1]) {
			return true
		}
	}
	visit(raw)
	return seen
}

func decodeAt(s string) (json.RawMessage, bool) {
	var v json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&v); err == nil {
		return v, true
	}

	span, ok := balancedSpan(s)
	if !ok {
		return nil, false
	}
	std, err := hujson.Standardize([]byte(span))
	if err != nil || !json.Valid(std) {
		return nil, false
	}
	return json.RawMessage(bytes.TrimSpace(std)), true
}

// balancedSpan returns the prefix of s up to the bracket closing s[0],
// skipping over string literals
func balancedSpan(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
