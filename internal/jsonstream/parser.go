package jsonstream

import (
	"fmt"
	"io"
)

// Parser consumes the lexical Token sequence from a Tokenizer and drives a
// tagged frame stack that:
//
//   - emits a row fragment for each direct child of the top-level "results"
//     array, as soon as that child's closing token arrives, without waiting
//     for the rest of the document;
//   - buffers the top-level "errors" array and emits it exactly once, as a
//     single ErrorsComplete signal, when its closing bracket arrives;
//   - reconstructs everything else (the residual top-level document, with
//     "results" reduced to an empty array and "errors" preserved in full)
//     for retrieval once the stream ends.
//
// A Parser is single-use: create one per response body.
type Parser struct {
	stack []*frame

	onRow            func(fragment string)
	onErrorsComplete func(fragments []string)

	// inResults records whether the results array is currently open: it is
	// set when that array starts and cleared when it closes, and stays set
	// while a row's nested containers sit above it on the stack.
	// closeContainer/appendOrEmitRow do not read it; they decide from the
	// top frame's isResults flag instead.
	inResults bool

	residual string
}

// NewParser creates a Parser. onRow is called, in order, once per row
// fragment; onErrorsComplete is called at most once, with the full set of
// error fragments seen (possibly empty), when the "errors" array closes.
// Either callback may be nil.
func NewParser(onRow func(string), onErrorsComplete func([]string)) *Parser {
	if onRow == nil {
		onRow = func(string) {}
	}
	if onErrorsComplete == nil {
		onErrorsComplete = func([]string) {}
	}
	return &Parser{onRow: onRow, onErrorsComplete: onErrorsComplete}
}

// Feed advances the parser by one lexical token.
func (p *Parser) Feed(tok Token) error {
	switch tok.Kind {
	case StartObject:
		p.stack = append(p.stack, &frame{kind: frameContext, template: templateObject})
		return nil

	case StartArray:
		f := &frame{kind: frameContext, template: templateArray}
		if n := len(p.stack); n > 0 && p.stack[n-1].kind == frameKey {
			switch p.stack[n-1].keyName {
			case "results":
				f.isResults = true
				p.inResults = true
			case "errors":
				f.isErrors = true
			}
		}
		p.stack = append(p.stack, f)
		return nil

	case EndObject:
		return p.closeContainer(templateObject)

	case EndArray:
		return p.closeContainer(templateArray)

	case KeyValue:
		p.stack = append(p.stack, &frame{kind: frameKey, keyName: tok.Str})
		return nil

	case StringValue:
		return p.appendOrEmitRow(serializeString(tok.Str))

	case NumberValue:
		return p.appendOrEmitRow(tok.Str)

	case TrueValue:
		return p.appendOrEmitRow("true")

	case FalseValue:
		return p.appendOrEmitRow("false")

	case NullValue:
		return p.appendOrEmitRow("null")

	default:
		return fmt.Errorf("jsonstream: unknown token kind %d", tok.Kind)
	}
}

// closeContainer pops the context frame a closing bracket refers to,
// serializes it, fires any side-channel signal it carries, and routes the
// result into its parent.
func (p *Parser) closeContainer(want template) error {
	n := len(p.stack)
	if n == 0 {
		return fmt.Errorf("jsonstream: unmatched closing bracket with empty stack")
	}

	f := p.stack[n-1]
	if f.kind != frameContext || f.template != want {
		return fmt.Errorf("jsonstream: mismatched closing bracket")
	}
	p.stack = p.stack[:n-1]
	serialized := f.serialize()

	if f.isErrors {
		p.onErrorsComplete(append([]string(nil), f.items...))
	}
	if f.isResults {
		p.inResults = false
	}

	return p.appendOrEmitRow(serialized)
}

// appendOrEmitRow routes one fully-serialized value, either emitting it as
// a row (when it is a direct child of the results array) or inserting it
// into the enclosing context in the normal way.
func (p *Parser) appendOrEmitRow(serialized string) error {
	if n := len(p.stack); n > 0 {
		top := p.stack[n-1]
		if top.kind == frameContext && top.isResults {
			p.onRow(serialized)
			return nil
		}
	}
	return p.appendValue(serialized)
}

// appendValue inserts a serialized value into whatever sits below it on
// the stack: a pending key (consuming it and attaching "key":value to the
// grandparent), an enclosing array (appending as an element), or, if the
// stack is empty, becomes the final residual primitive.
func (p *Parser) appendValue(serialized string) error {
	n := len(p.stack)
	if n == 0 {
		p.stack = append(p.stack, &frame{kind: framePrimitive, primitive: serialized})
		return nil
	}

	top := p.stack[n-1]
	switch top.kind {
	case frameKey:
		key := top.keyName
		p.stack = p.stack[:n-1]
		gn := len(p.stack)
		if gn == 0 {
			return fmt.Errorf("jsonstream: object key %q has no enclosing object", key)
		}
		gp := p.stack[gn-1]
		gp.items = append(gp.items, quoteKey(key)+":"+serialized)
		return nil

	case frameContext:
		top.items = append(top.items, serialized)
		return nil

	default:
		return fmt.Errorf("jsonstream: cannot append a value here")
	}
}

// Finish must be called once the token stream is exhausted. It returns the
// serialized residual document: everything from the top-level document
// except the rows already emitted through onRow, with "results" reduced
// to "[]" and "errors" preserved in full.
func (p *Parser) Finish() (string, error) {
	if len(p.stack) != 1 {
		return "", fmt.Errorf("jsonstream: unexpected end of stream, %d unclosed container(s)", len(p.stack))
	}

	f := p.stack[0]
	switch f.kind {
	case framePrimitive:
		p.residual = f.primitive
	case frameContext:
		// A closed top-level container is left behind as a framePrimitive,
		// so a context frame here is one whose closing token never came.
		return "", fmt.Errorf("jsonstream: unexpected end of stream, 1 unclosed container(s)")
	default:
		return "", fmt.Errorf("jsonstream: unexpected end of stream inside an object member")
	}

	return p.residual, nil
}

// Run drains every token from t, feeding the parser and invoking the
// configured callbacks, then returns the residual document. It blocks
// until t.Next returns io.EOF or an error, so callers that want rows
// delivered incrementally as bytes arrive over the network should run it
// in its own goroutine against a Tokenizer reading directly from the
// response body.
func Run(t *Tokenizer, p *Parser) (string, error) {
	for {
		tok, err := t.Next()
		if err == io.EOF {
			return p.Finish()
		}
		if err != nil {
			return "", err
		}
		if err := p.Feed(tok); err != nil {
			return "", err
		}
	}
}
