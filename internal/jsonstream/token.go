// Package jsonstream implements the incremental JSON response parser: it
// turns a stream of JSON lexical tokens into a lazy sequence of row
// fragments drawn from the top-level "results" array, a single buffered
// "errors" array signal, and a residual document holding everything else.
package jsonstream

import (
	"encoding/json"
	"fmt"
	"io"
)

// Kind enumerates the lexical token shapes the parser's frame-stack
// algorithm consumes.
type Kind int

const (
	StartObject Kind = iota
	EndObject
	StartArray
	EndArray
	KeyValue
	StringValue
	NumberValue
	NullValue
	TrueValue
	FalseValue
)

// Token is one lexical event from the tokenizer. Str carries the raw text
// for KeyValue, StringValue (unescaped) and NumberValue (literal numeric
// text, preserved verbatim so re-serialization never loses precision).
type Token struct {
	Kind Kind
	Str  string
}

// containerKind distinguishes the two JSON container shapes for the
// purpose of deciding whether the next string token is an object key or a
// value.
type containerKind int

const (
	containerObject containerKind = iota
	containerArray
)

type openContainer struct {
	kind        containerKind
	awaitingKey bool // only meaningful for containerObject
}

// Tokenizer turns a byte stream into the lexical Token sequence described
// above. It wraps encoding/json.Decoder, which is the one standard-library
// primitive offering token-at-a-time JSON lexing; none of the libraries
// used elsewhere in this module's dependency graph expose that granularity.
type Tokenizer struct {
	dec   *json.Decoder
	stack []openContainer
}

// NewTokenizer creates a Tokenizer reading from r.
func NewTokenizer(r io.Reader) *Tokenizer {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Tokenizer{dec: dec}
}

// Next returns the next token, or io.EOF once the reader is exhausted.
// Input that stops inside an unclosed container also ends with io.EOF;
// Parser.Finish reports such a stream as an error.
func (t *Tokenizer) Next() (Token, error) {
	raw, err := t.dec.Token()
	if err != nil {
		return Token{}, err
	}

	switch v := raw.(type) {
	case json.Delim:
		switch v {
		case '{':
			t.stack = append(t.stack, openContainer{kind: containerObject, awaitingKey: true})
			return Token{Kind: StartObject}, nil
		case '}':
			if err := t.pop(containerObject); err != nil {
				return Token{}, err
			}
			t.markValueConsumed()
			return Token{Kind: EndObject}, nil
		case '[':
			t.stack = append(t.stack, openContainer{kind: containerArray})
			return Token{Kind: StartArray}, nil
		case ']':
			if err := t.pop(containerArray); err != nil {
				return Token{}, err
			}
			t.markValueConsumed()
			return Token{Kind: EndArray}, nil
		default:
			return Token{}, fmt.Errorf("jsonstream: unexpected delimiter %q", v)
		}
	case string:
		if n := len(t.stack); n > 0 && t.stack[n-1].kind == containerObject && t.stack[n-1].awaitingKey {
			t.stack[n-1].awaitingKey = false
			return Token{Kind: KeyValue, Str: v}, nil
		}
		t.markValueConsumed()
		return Token{Kind: StringValue, Str: v}, nil
	case json.Number:
		t.markValueConsumed()
		return Token{Kind: NumberValue, Str: v.String()}, nil
	case bool:
		t.markValueConsumed()
		if v {
			return Token{Kind: TrueValue}, nil
		}
		return Token{Kind: FalseValue}, nil
	case nil:
		t.markValueConsumed()
		return Token{Kind: NullValue}, nil
	default:
		return Token{}, fmt.Errorf("jsonstream: unexpected token %T", raw)
	}
}

// pop verifies the top of the bracket-matching stack is of kind want and
// removes it.
func (t *Tokenizer) pop(want containerKind) error {
	n := len(t.stack)
	if n == 0 || t.stack[n-1].kind != want {
		return fmt.Errorf("jsonstream: mismatched closing bracket")
	}
	t.stack = t.stack[:n-1]
	return nil
}

// markValueConsumed flips the enclosing object, if any, back to expecting
// a key: a value (scalar or a container that just closed) was just
// produced on its behalf.
func (t *Tokenizer) markValueConsumed() {
	if n := len(t.stack); n > 0 && t.stack[n-1].kind == containerObject {
		t.stack[n-1].awaitingKey = true
	}
}
