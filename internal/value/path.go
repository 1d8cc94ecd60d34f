package value

import (
	"strconv"
	"strings"
)

// segment is one step of a parsed path: either an object field name or
// an array index.
type segment struct {
	field   string
	index   int
	isIndex bool
}

// Resolve walks a dotted/bracketed path against a decoded JSON value
// tree and returns the value it points at.
//
// The path grammar is dot-separated field names with optional [index]
// array indexing, arbitrarily nested: "a.b[2].c". An empty path
// resolves to root itself.
//
// The second return value reports whether the path resolved. All
// absence cases return false rather than an error:
//   - a missing intermediate or leaf field
//   - traversing a field on a non-object
//   - indexing a non-array
//   - a negative or out-of-range index
//   - a non-integer index expression
//
// Callers decide how to render absence; see engine template expansion.
func Resolve(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}

	segments, ok := parsePath(path)
	if !ok {
		return nil, false
	}

	current := root
	for _, seg := range segments {
		if seg.isIndex {
			arr, isArr := current.([]any)
			if !isArr {
				return nil, false
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
			continue
		}

		obj, isObj := current.(map[string]any)
		if !isObj {
			return nil, false
		}
		val, exists := obj[seg.field]
		if !exists {
			return nil, false
		}
		current = val
	}

	return current, true
}

// parsePath splits a path expression into field and index segments.
// Returns false for malformed paths (unterminated bracket, empty or
// non-integer index, empty field name).
func parsePath(path string) ([]segment, bool) {
	var segments []segment
	i := 0

	for i < len(path) {
		switch path[i] {
		case '[':
			close := strings.IndexByte(path[i:], ']')
			if close < 0 {
				return nil, false
			}
			idxText := path[i+1 : i+close]
			idx, err := strconv.Atoi(idxText)
			if err != nil {
				return nil, false
			}
			segments = append(segments, segment{index: idx, isIndex: true})
			i += close + 1
			// A dot directly after "]" separates the next field.
			if i < len(path) && path[i] == '.' {
				i++
			}

		case '.':
			// Leading or doubled dot produces an empty field name.
			return nil, false

		default:
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				end++
			}
			segments = append(segments, segment{field: path[i:end]})
			i = end
			if i < len(path) && path[i] == '.' {
				i++
				// Trailing dot is malformed.
				if i == len(path) {
					return nil, false
				}
			}
		}
	}

	return segments, true
}
