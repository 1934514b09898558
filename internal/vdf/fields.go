package vdf

import "fmt"

// GetField returns the value of the first field with the given key
// inside the named block (case-insensitive on both), searching any
// nesting depth. Returns ErrBlockNotFound or ErrFieldNotFound.
func GetField(content []byte, blockKey, field string) (string, error) {
	_, block, err := findBlock(content, blockKey)
	if err != nil {
		return "", err
	}
	f, ok := findField(content, block, field)
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrFieldNotFound, field, blockKey)
	}
	return f.Value, nil
}

// SetField rewrites the first field with the given key inside the named
// block to value, or appends the field just before the block's closing
// brace when absent. All other bytes are preserved verbatim.
func SetField(content []byte, blockKey, field, value string) ([]byte, error) {
	_, block, err := findBlock(content, blockKey)
	if err != nil {
		return nil, err
	}

	if f, ok := findField(content, block, field); ok {
		if f.Value == value {
			out := make([]byte, len(content))
			copy(out, content)
			return out, nil
		}
		return applyEdits(content, []edit{{span: f.ValueSpan, repl: quoted(value)}})
	}

	insertAt := block.End - 1
	line := append([]byte("\t"), quoted(field)...)
	line = append(line, '\t', '\t')
	line = append(line, quoted(value)...)
	line = append(line, '\n')
	return applyEdits(content, []edit{{span: span{Start: insertAt, End: insertAt}, repl: line}})
}
