// Package tokenizer provides the deterministic BPE token counting shared
// by the prompt assembler's budget enforcement (spec §4.3) and chunk
// ingestion's fixed-token-count splitting (spec §4.7).
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
)

func encoder() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		enc, err = tiktoken.GetEncoding(encodingName)
	})
	return enc, err
}

// Count returns the number of cl100k_base tokens in text. It falls back to
// a conservative rune-count/4 estimate if the encoding can't be loaded
// (e.g. offline without the bpe ranks cached), so budget enforcement never
// panics.
func Count(text string) int {
	e, err := encoder()
	if err != nil {
		return fallbackCount(text)
	}
	return len(e.Encode(text, nil, nil))
}

// Encode returns the token IDs for text, used by chunking to cut on exact
// token boundaries rather than estimated ones.
func Encode(text string) []int {
	e, err := encoder()
	if err != nil {
		return nil
	}
	return e.Encode(text, nil, nil)
}

// Decode reconstructs text from a slice of token IDs.
func Decode(tokens []int) (string, error) {
	e, encErr := encoder()
	if encErr != nil {
		return "", encErr
	}
	return e.Decode(tokens), nil
}

func fallbackCount(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}
