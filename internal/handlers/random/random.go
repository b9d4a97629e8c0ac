// Package random holds the randomness modules mounted under /random.
package random

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"

	"endpointhub/internal/api"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/registry"
)

const (
	Prefix   = "/random"
	category = "Random"

	DefaultSides = 6
	MaxSides     = 1000
	MaxDice      = 100
	MaxUUIDs     = 50
)

// Source supplies random integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Modules returns the modules of the /random group. A nil src uses the
// process-wide generator.
func Modules(src Source) []registry.Module {
	if src == nil {
		src = globalSource{}
	}
	h := handlers{src: src}
	return []registry.Module{
		registry.Func(registry.Descriptor{
			Name:        "Dice Roll",
			Method:      http.MethodGet,
			Path:        "/dice?sides=6&count=2",
			Category:    category,
			Description: "Rolls count dice with the given number of sides.",
			Params: []registry.Param{
				{Name: "sides", Type: registry.ParamNumber, Description: "2 to 1000, defaults to 6"},
				{Name: "count", Type: registry.ParamNumber, Description: "1 to 100, defaults to 1"},
			},
		}, h.dice),
		registry.Func(registry.Descriptor{
			Name:        "UUID",
			Method:      http.MethodGet,
			Path:        "/uuid?count=1",
			Category:    category,
			Description: "Generates random version 4 UUIDs.",
			Params: []registry.Param{
				{Name: "count", Type: registry.ParamNumber, Description: "1 to 50, defaults to 1"},
			},
		}, h.uuids),
		registry.Func(registry.Descriptor{
			Name:        "Random Pick",
			Method:      http.MethodPost,
			Path:        "/pick",
			Category:    category,
			Description: "Picks one entry from options.",
			Params: []registry.Param{
				{Name: "options", Type: registry.ParamArray, Required: true},
			},
		}, h.pick),
	}
}

type handlers struct {
	src Source
}

type diceResponse struct {
	Sides int   `json:"sides"`
	Count int   `json:"count"`
	Rolls []int `json:"rolls"`
	Total int   `json:"total"`
}

func (h handlers) dice(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	params := pipeline.ParamsFromContext(r.Context())
	sides := params.Int("sides", DefaultSides)
	count := params.Int("count", 1)
	if sides < 2 || sides > MaxSides {
		return api.ValidationError(fmt.Sprintf("sides must be between 2 and %d", MaxSides))
	}
	if count < 1 || count > MaxDice {
		return api.ValidationError(fmt.Sprintf("count must be between 1 and %d", MaxDice))
	}

	resp := diceResponse{Sides: sides, Count: count, Rolls: make([]int, count)}
	for i := range resp.Rolls {
		roll := h.src.IntN(sides) + 1
		resp.Rolls[i] = roll
		resp.Total += roll
	}
	api.WriteJSON(w, http.StatusOK, resp)
	return nil
}

type uuidResponse struct {
	UUIDs []string `json:"uuids"`
}

func (h handlers) uuids(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	count := pipeline.ParamsFromContext(r.Context()).Int("count", 1)
	if count < 1 || count > MaxUUIDs {
		return api.ValidationError(fmt.Sprintf("count must be between 1 and %d", MaxUUIDs))
	}
	resp := uuidResponse{UUIDs: make([]string, count)}
	for i := range resp.UUIDs {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("generate uuid: %w", err)
		}
		resp.UUIDs[i] = id.String()
	}
	api.WriteJSON(w, http.StatusOK, resp)
	return nil
}

type pickResponse struct {
	Choice  any `json:"choice"`
	Options int `json:"options"`
}

func (h handlers) pick(w http.ResponseWriter, r *http.Request, _ *slog.Logger) error {
	options, ok := pipeline.ParamsFromContext(r.Context())["options"].([]any)
	if !ok || len(options) == 0 {
		return api.ValidationError("options must be a non-empty array")
	}
	api.WriteJSON(w, http.StatusOK, pickResponse{
		Choice:  options[h.src.IntN(len(options))],
		Options: len(options),
	})
	return nil
}
