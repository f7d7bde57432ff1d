package jsonstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, body string) []Token {
	t.Helper()
	tz := NewTokenizer(strings.NewReader(body))
	var toks []Token
	for {
		tok, err := tz.Next()
		if err == io.EOF {
			return toks
		}
		require.NoError(t, err)
		toks = append(toks, tok)
	}
}

func TestTokenizerDisambiguatesKeysFromStringValues(t *testing.T) {
	toks := drain(t, `{"a":"b","c":{"d":"e"}}`)

	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}

	assert.Equal(t, []Kind{
		StartObject,
		KeyValue, StringValue,
		KeyValue, StartObject,
		KeyValue, StringValue,
		EndObject,
		EndObject,
	}, kinds)

	assert.Equal(t, "a", toks[1].Str)
	assert.Equal(t, "b", toks[2].Str)
}

func TestTokenizerTreatsArrayStringsAsValuesNeverKeys(t *testing.T) {
	toks := drain(t, `["a","b"]`)

	require.Len(t, toks, 4)
	assert.Equal(t, StringValue, toks[1].Kind)
	assert.Equal(t, StringValue, toks[2].Kind)
}

func TestTokenizerPreservesNumberLiteralText(t *testing.T) {
	toks := drain(t, `[1, 1.50, 1e10, 0.1000000000000000055511151231257827]`)

	require.Len(t, toks, 6)
	assert.Equal(t, "1", toks[1].Str)
	assert.Equal(t, "1.50", toks[2].Str)
	assert.Equal(t, "1e10", toks[3].Str)
	assert.Equal(t, "0.1000000000000000055511151231257827", toks[4].Str)
}

func TestTokenizerMismatchedBracketsError(t *testing.T) {
	tz := NewTokenizer(strings.NewReader(`{"a":1]`))
	_, err := tz.Next() // {
	require.NoError(t, err)
	_, err = tz.Next() // "a"
	require.NoError(t, err)
	_, err = tz.Next() // 1
	require.NoError(t, err)
	_, err = tz.Next() // ] — should fail, object is open
	assert.Error(t, err)
}
