// Package vdf parses and rewrites Valve's nested key-value text format
// (VDF), the format Steam uses for loginusers.vdf and config.vdf.
//
// The package is built for minimal-diff rewrites: every byte the caller
// does not explicitly change is preserved verbatim, including comments,
// ordering, and whitespace. Steam is known to be picky about its own
// files, so edits splice replacement values into the original buffer
// instead of re-serializing a parsed tree.
//
// Block boundaries are found with an explicit character scanner and a
// brace depth counter. Regex-based matching breaks on nested blocks and
// is not used anywhere here.
package vdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBlockNotFound indicates the requested block key does not exist
	// in the document.
	ErrBlockNotFound = errors.New("vdf: block not found")

	// ErrFieldNotFound indicates the requested field key does not exist
	// within the searched span.
	ErrFieldNotFound = errors.New("vdf: field not found")
)

// SyntaxError reports malformed VDF input with the byte offset at which
// scanning failed.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("vdf: %s at offset %d", e.Msg, e.Offset)
}

// tokenKind classifies a scanned token.
type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenString
	tokenOpen
	tokenClose
)

// token is one lexical element of a VDF document. Start and End are the
// byte span of the token including quotes; Value is the unquoted,
// unescaped text for string tokens.
type token struct {
	Kind  tokenKind
	Start int
	End   int
	Value string
}

// scanner walks a VDF buffer one token at a time.
type scanner struct {
	data []byte
	pos  int
}

func newScanner(data []byte) *scanner {
	return &scanner{data: data}
}

// skip advances past whitespace and // line comments.
func (s *scanner) skip() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case c == '/' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '/':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token. Unquoted strings (legal in VDF for keys
// like conditionals) are scanned up to the next whitespace or brace.
func (s *scanner) next() (token, error) {
	s.skip()
	if s.pos >= len(s.data) {
		return token{Kind: tokenEOF, Start: s.pos, End: s.pos}, nil
	}

	start := s.pos
	switch c := s.data[s.pos]; c {
	case '{':
		s.pos++
		return token{Kind: tokenOpen, Start: start, End: s.pos}, nil
	case '}':
		s.pos++
		return token{Kind: tokenClose, Start: start, End: s.pos}, nil
	case '"':
		return s.scanQuoted()
	default:
		for s.pos < len(s.data) {
			c := s.data[s.pos]
			if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '{' || c == '}' || c == '"' {
				break
			}
			s.pos++
		}
		return token{
			Kind:  tokenString,
			Start: start,
			End:   s.pos,
			Value: string(s.data[start:s.pos]),
		}, nil
	}
}

// scanQuoted reads a double-quoted string honoring backslash escapes.
func (s *scanner) scanQuoted() (token, error) {
	start := s.pos
	s.pos++ // opening quote

	var b strings.Builder
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch c {
		case '\\':
			if s.pos+1 >= len(s.data) {
				return token{}, &SyntaxError{Offset: s.pos, Msg: "dangling escape"}
			}
			esc := s.data[s.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			s.pos += 2
		case '"':
			s.pos++
			return token{Kind: tokenString, Start: start, End: s.pos, Value: b.String()}, nil
		case '\n':
			return token{}, &SyntaxError{Offset: s.pos, Msg: "unterminated string"}
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return token{}, &SyntaxError{Offset: start, Msg: "unterminated string"}
}

// span is a byte range within a document. For a block it covers the
// opening brace through the matching closing brace inclusive.
type span struct {
	Start int
	End   int
}

// inner returns the span between the braces, exclusive.
func (sp span) inner() span {
	return span{Start: sp.Start + 1, End: sp.End - 1}
}

// matchBlock returns the span of the block whose opening brace is the
// given token, by counting brace depth from there. Quoted strings are
// skipped via the tokenizer, so braces inside values cannot confuse the
// count. Returns a SyntaxError if the document ends before the block
// closes.
func matchBlock(s *scanner, open token) (span, error) {
	depth := 1
	for {
		tok, err := s.next()
		if err != nil {
			return span{}, err
		}
		switch tok.Kind {
		case tokenOpen:
			depth++
		case tokenClose:
			depth--
			if depth == 0 {
				return span{Start: open.Start, End: tok.End}, nil
			}
		case tokenEOF:
			return span{}, &SyntaxError{Offset: open.Start, Msg: "unbalanced braces"}
		}
	}
}

// findBlock locates the first block whose key matches (case-insensitive)
// anywhere in data, and returns the spans of the key token and the
// block. Keys in Steam's own files vary in casing between client
// generations, so exact-case lookup is a trap.
func findBlock(data []byte, key string) (keySpan, blockSpan span, err error) {
	s := newScanner(data)
	for {
		tok, err := s.next()
		if err != nil {
			return span{}, span{}, err
		}
		if tok.Kind == tokenEOF {
			return span{}, span{}, fmt.Errorf("%w: %q", ErrBlockNotFound, key)
		}
		if tok.Kind != tokenString || !strings.EqualFold(tok.Value, key) {
			continue
		}
		next, err := s.next()
		if err != nil {
			return span{}, span{}, err
		}
		if next.Kind != tokenOpen {
			continue
		}
		block, err := matchBlock(s, next)
		if err != nil {
			return span{}, span{}, err
		}
		return span{Start: tok.Start, End: tok.End}, block, nil
	}
}

// entry is one parsed element directly inside a block: either a
// key/value pair or a key/sub-block pair.
type entry struct {
	Key       string
	KeySpan   span
	Value     string
	ValueSpan span // string value span including quotes, zero for blocks
	Block     span // block span, zero for string values
}

// blockEntries parses the direct children of the given block span.
// Nested blocks are skipped over as opaque units so arbitrary depth is
// handled without recursion limits.
func blockEntries(data []byte, block span) ([]entry, error) {
	s := newScanner(data[:block.inner().End])
	s.pos = block.inner().Start

	var entries []entry
	for {
		keyTok, err := s.next()
		if err != nil {
			return nil, err
		}
		if keyTok.Kind == tokenEOF {
			return entries, nil
		}
		if keyTok.Kind == tokenClose {
			// Matching close of the parent; callers clamp the scanner,
			// so this means mismatched input.
			return nil, &SyntaxError{Offset: keyTok.Start, Msg: "unexpected close brace"}
		}
		if keyTok.Kind != tokenString {
			return nil, &SyntaxError{Offset: keyTok.Start, Msg: "expected key"}
		}

		valTok, err := s.next()
		if err != nil {
			return nil, err
		}
		switch valTok.Kind {
		case tokenString:
			entries = append(entries, entry{
				Key:       keyTok.Value,
				KeySpan:   span{Start: keyTok.Start, End: keyTok.End},
				Value:     valTok.Value,
				ValueSpan: span{Start: valTok.Start, End: valTok.End},
			})
		case tokenOpen:
			sub, err := matchBlock(s, valTok)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{
				Key:     keyTok.Value,
				KeySpan: span{Start: keyTok.Start, End: keyTok.End},
				Block:   sub,
			})
		default:
			return nil, &SyntaxError{Offset: valTok.Start, Msg: "expected value or block"}
		}
	}
}

// findField scans all key/value pairs within the span (at any nesting
// depth) and returns the first whose key matches, case-insensitive.
func findField(data []byte, within span, key string) (entry, bool) {
	fields := allFields(data, within, key)
	if len(fields) == 0 {
		return entry{}, false
	}
	return fields[0], true
}

// allFields returns every key/value pair within the span whose key
// matches, case-insensitive, at any nesting depth, in document order.
// Key/value alternation is tracked explicitly so a value that happens
// to spell a field name (a persona name, say) is never mistaken for a
// key.
func allFields(data []byte, within span, key string) []entry {
	s := newScanner(data[:within.End])
	s.pos = within.Start

	var (
		out       []entry
		pending   token
		expectKey = true
	)
	for {
		tok, err := s.next()
		if err != nil || tok.Kind == tokenEOF {
			return out
		}
		switch tok.Kind {
		case tokenString:
			if expectKey {
				pending = tok
				expectKey = false
			} else {
				if strings.EqualFold(pending.Value, key) {
					out = append(out, entry{
						Key:       pending.Value,
						KeySpan:   span{Start: pending.Start, End: pending.End},
						Value:     tok.Value,
						ValueSpan: span{Start: tok.Start, End: tok.End},
					})
				}
				expectKey = true
			}
		case tokenOpen, tokenClose:
			// A key followed by a brace opened a sub-block; either way
			// the next string starts a fresh key position.
			expectKey = true
		}
	}
}

// edit is a pending byte-range replacement.
type edit struct {
	span
	repl []byte
}

// errEditOverlap means two pending edits touch the same bytes. Edit
// lists are built from distinct field spans, so overlap indicates a
// bug in the caller, not bad input.
var errEditOverlap = errors.New("overlapping edits")

// applyEdits splices the replacements into data in ascending offset
// order. Overlapping edits are rejected rather than silently producing
// a corrupt document.
func applyEdits(data []byte, edits []edit) ([]byte, error) {
	if len(edits) == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	// Insertion-sort by offset; edit lists here are tiny.
	for i := 1; i < len(edits); i++ {
		for j := i; j > 0 && edits[j].Start < edits[j-1].Start; j-- {
			edits[j], edits[j-1] = edits[j-1], edits[j]
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	pos := 0
	for _, e := range edits {
		if e.Start < pos {
			return nil, fmt.Errorf("%w: at offset %d", errEditOverlap, e.Start)
		}
		buf.Write(data[pos:e.Start])
		buf.Write(e.repl)
		pos = e.End
	}
	buf.Write(data[pos:])
	return buf.Bytes(), nil
}

// quoted renders a value as a quoted VDF string.
func quoted(v string) []byte {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return []byte(`"` + r.Replace(v) + `"`)
}
