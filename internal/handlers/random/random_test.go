package random

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"

	"endpointhub/internal/testsupport"
)

// sequence replays fixed values, each reduced modulo n.
type sequence struct {
	values []int
	next   int
}

func (s *sequence) IntN(n int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

func TestDiceRolls(t *testing.T) {
	h := testsupport.NewHarness(t, Prefix, Modules(&sequence{values: []int{0, 5, 2}})...)

	rec := h.Do(t, http.MethodGet, "/api/random/dice?sides=6&count=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Rolls []int `json:"rolls"`
		Total int   `json:"total"`
	}
	testsupport.DecodeJSON(t, rec, &body)
	if len(body.Rolls) != 3 || body.Rolls[0] != 1 || body.Rolls[1] != 6 || body.Rolls[2] != 3 || body.Total != 10 {
		t.Fatalf("unexpected rolls %#v", body)
	}
}

func TestDiceRejectsOutOfRange(t *testing.T) {
	h := testsupport.NewHarness(t, Prefix, Modules(nil)...)
	for _, target := range []string{
		"/api/random/dice?sides=1",
		"/api/random/dice?sides=1001",
		"/api/random/dice?count=0",
		"/api/random/dice?count=101",
	} {
		if rec := h.Do(t, http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestUUIDs(t *testing.T) {
	h := testsupport.NewHarness(t, Prefix, Modules(nil)...)

	rec := h.Do(t, http.MethodGet, "/api/random/uuid?count=3", nil)
	var body struct {
		UUIDs []string `json:"uuids"`
	}
	testsupport.DecodeJSON(t, rec, &body)
	if len(body.UUIDs) != 3 {
		t.Fatalf("expected 3 uuids, got %#v", body.UUIDs)
	}
	for _, raw := range body.UUIDs {
		id, err := uuid.Parse(raw)
		if err != nil || id.Version() != 4 {
			t.Fatalf("expected v4 uuid, got %q (%v)", raw, err)
		}
	}

	if rec := h.Do(t, http.MethodGet, "/api/random/uuid?count=51", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 above the cap, got %d", rec.Code)
	}
}

func TestPick(t *testing.T) {
	h := testsupport.NewHarness(t, Prefix, Modules(&sequence{values: []int{1}})...)

	rec := h.Do(t, http.MethodPost, "/api/random/pick", map[string]any{"options": []string{"a", "b", "c"}})
	var body struct {
		Choice  string `json:"choice"`
		Options int    `json:"options"`
	}
	testsupport.DecodeJSON(t, rec, &body)
	if rec.Code != http.StatusOK || body.Choice != "b" || body.Options != 3 {
		t.Fatalf("unexpected pick %d %#v", rec.Code, body)
	}

	form := url.Values{"options[]": {"x", "y"}}
	rec = h.Do(t, http.MethodPost, "/api/random/pick", form)
	testsupport.DecodeJSON(t, rec, &body)
	if rec.Code != http.StatusOK || body.Choice != "y" || body.Options != 2 {
		t.Fatalf("unexpected form pick %d %#v", rec.Code, body)
	}

	for _, payload := range []any{
		map[string]any{"options": []string{}},
		map[string]any{"options": "a,b"},
		map[string]any{},
	} {
		if rec := h.Do(t, http.MethodPost, "/api/random/pick", payload); rec.Code != http.StatusBadRequest {
			t.Errorf("payload %#v: expected 400, got %d", payload, rec.Code)
		}
	}
}
