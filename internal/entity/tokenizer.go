package entity

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Tokenizer derives extra searchable values from a lookup source value.
// Each token is hashed and stored under the alias "<field>_<Name()>".
type Tokenizer interface {
	Name() string
	Tokenize(value string) []string
}

// TokenizerFactory builds a tokenizer at registration time.
type TokenizerFactory func() (Tokenizer, error)

type tokenizerFunc struct {
	name string
	fn   func(value string) []string
}

func (t tokenizerFunc) Name() string { return t.name }

func (t tokenizerFunc) Tokenize(value string) []string { return t.fn(value) }

// NewTokenizer adapts a function to the Tokenizer interface.
func NewTokenizer(name string, fn func(value string) []string) Tokenizer {
	return tokenizerFunc{name: name, fn: fn}
}

// Lowercase emits the lowercased value, for case-insensitive search.
func Lowercase() TokenizerFactory {
	return func() (Tokenizer, error) {
		return NewTokenizer("lowercase", func(value string) []string {
			return []string{strings.ToLower(value)}
		}), nil
	}
}

// Prefix emits the first n characters of the value.
func Prefix(n int) TokenizerFactory {
	return func() (Tokenizer, error) {
		if n <= 0 {
			return nil, fmt.Errorf("prefix length must be positive, got %d", n)
		}
		return NewTokenizer(fmt.Sprintf("prefix%d", n), func(value string) []string {
			if utf8.RuneCountInString(value) < n {
				return nil
			}
			return []string{string([]rune(value)[:n])}
		}), nil
	}
}

// Suffix emits the last n characters of the value.
func Suffix(n int) TokenizerFactory {
	return func() (Tokenizer, error) {
		if n <= 0 {
			return nil, fmt.Errorf("suffix length must be positive, got %d", n)
		}
		return NewTokenizer(fmt.Sprintf("suffix%d", n), func(value string) []string {
			runes := []rune(value)
			if len(runes) < n {
				return nil
			}
			return []string{string(runes[len(runes)-n:])}
		}), nil
	}
}

// EmailDomain emits the lowercased domain of an email address.
func EmailDomain() TokenizerFactory {
	return func() (Tokenizer, error) {
		return NewTokenizer("domain", func(value string) []string {
			at := strings.LastIndexByte(value, '@')
			if at < 0 || at == len(value)-1 {
				return nil
			}
			return []string{strings.ToLower(value[at+1:])}
		}), nil
	}
}
