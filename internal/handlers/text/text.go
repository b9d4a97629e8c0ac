// Package text holds the string manipulation modules mounted under /text.
package text

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"endpointhub/internal/api"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/registry"
)

const (
	Prefix   = "/text"
	category = "Text"

	DefaultStyle     = "upper"
	DefaultAlgorithm = "sha256"
)

// Modules returns the modules of the /text group.
func Modules() []registry.Module {
	return []registry.Module{
		registry.Func(registry.Descriptor{
			Name:        "Text Style",
			Method:      http.MethodGet,
			Path:        "/style?text=hello&style=upper",
			Category:    category,
			Description: "Restyles text: upper, lower, title, reverse or fullwidth.",
			Params: []registry.Param{
				{Name: "text", Type: registry.ParamString, Required: true},
				{Name: "style", Type: registry.ParamString, Description: "Defaults to upper"},
			},
		}, handleStyle),
		registry.Func(registry.Descriptor{
			Name:        "Text Hash",
			Method:      http.MethodPost,
			Path:        "/hash",
			Category:    category,
			Description: "Hex digest of text using sha256, sha3 or blake2b.",
			Params: []registry.Param{
				{Name: "text", Type: registry.ParamString, Required: true},
				{Name: "algorithm", Type: registry.ParamString, Description: "Defaults to sha256"},
			},
			RateLimit: 30,
		}, handleHash),
		registry.Func(registry.Descriptor{
			Name:        "Text Count",
			Method:      http.MethodGet,
			Path:        "/count?text=hello",
			Category:    category,
			Description: "Counts characters, words and lines after NFC normalization.",
			Params: []registry.Param{
				{Name: "text", Type: registry.ParamString, Required: true},
			},
		}, handleCount),
	}
}

var stylers = map[string]func(string) string{
	"upper":     func(s string) string { return cases.Upper(language.Und).String(s) },
	"lower":     func(s string) string { return cases.Lower(language.Und).String(s) },
	"title":     func(s string) string { return cases.Title(language.Und).String(s) },
	"reverse":   reverse,
	"fullwidth": width.Widen.String,
}

// Style applies the named style to s.
func Style(s, style string) (string, error) {
	fn, ok := stylers[style]
	if !ok {
		return "", api.ValidationError(fmt.Sprintf("Unsupported style: %s", style))
	}
	return fn(s), nil
}

func reverse(s string) string {
	runes := []rune(norm.NFC.String(s))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

type styleResponse struct {
	Text   string `json:"text"`
	Style  string `json:"style"`
	Result string `json:"result"`
}

func handleStyle(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	params := pipeline.ParamsFromContext(r.Context())
	style := strings.ToLower(strings.TrimSpace(params.String("style")))
	if style == "" {
		style = DefaultStyle
	}
	input := params.String("text")
	result, err := Style(input, style)
	if err != nil {
		return err
	}
	api.WriteJSON(w, http.StatusOK, styleResponse{Text: input, Style: style, Result: result})
	return nil
}

// Hash returns the hex digest of s under algorithm.
func Hash(s, algorithm string) (string, error) {
	data := []byte(s)
	switch algorithm {
	case "sha256":
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha3":
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "blake2b":
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", api.ValidationError(fmt.Sprintf("Unsupported algorithm: %s", algorithm))
	}
}

type hashResponse struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
}

func handleHash(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	params := pipeline.ParamsFromContext(r.Context())
	algorithm := strings.ToLower(strings.TrimSpace(params.String("algorithm")))
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	digest, err := Hash(params.String("text"), algorithm)
	if err != nil {
		return err
	}
	api.WriteJSON(w, http.StatusOK, hashResponse{Algorithm: algorithm, Hash: digest})
	return nil
}

// Counts summarises a piece of text.
type Counts struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Lines      int `json:"lines"`
}

// Count measures s after NFC normalization so composed and decomposed input
// report the same character count.
func Count(s string) Counts {
	normalized := norm.NFC.String(s)
	counts := Counts{
		Characters: utf8.RuneCountInString(normalized),
		Words:      len(strings.Fields(normalized)),
	}
	if normalized != "" {
		counts.Lines = strings.Count(normalized, "\n") + 1
	}
	return counts
}

func handleCount(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	api.WriteJSON(w, http.StatusOK, Count(pipeline.ParamsFromContext(r.Context()).String("text")))
	return nil
}
