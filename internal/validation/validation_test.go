package validation

import (
	"strings"
	"testing"
)

type sample struct {
	Title    string `json:"title" validate:"notblank,max=5"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password1" validate:"required"`
	Confirm  string `json:"password2" validate:"eqfield=Password"`
	Internal string `json:"-" validate:"required"`
}

func TestStruct_Valid(t *testing.T) {
	errs := Struct(sample{Title: "hi", Email: "a@example.com", Password: "x", Confirm: "x", Internal: "y"})
	if !errs.Empty() {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestStruct_UsesJSONNames(t *testing.T) {
	errs := Struct(sample{Title: "   ", Email: "not-an-email", Password: "x", Confirm: "y", Internal: "y"})

	for _, field := range []string{"title", "email", "password2"} {
		if len(errs[field]) == 0 {
			t.Errorf("expected error on %q, got %v", field, errs)
		}
	}
	if _, ok := errs["password1"]; ok {
		t.Errorf("unexpected error on password1: %v", errs["password1"])
	}
}

func TestStruct_MaxCountsRunes(t *testing.T) {
	errs := Struct(sample{Title: "あいうえお", Email: "a@example.com", Password: "x", Confirm: "x", Internal: "y"})
	if len(errs["title"]) != 0 {
		t.Errorf("5 runes should be within max=5, got %v", errs["title"])
	}

	errs = Struct(sample{Title: "あいうえおか", Email: "a@example.com", Password: "x", Confirm: "x", Internal: "y"})
	if len(errs["title"]) != 1 || !strings.Contains(errs["title"][0], "5") {
		t.Errorf("expected max error on title, got %v", errs["title"])
	}
}

func TestStruct_RequiredMessage(t *testing.T) {
	errs := Struct(sample{Title: "ok", Email: "", Password: "", Internal: "y"})
	if got := errs["email"]; len(got) != 1 || got[0] != "この項目は必須です。" {
		t.Errorf("email errors = %v", got)
	}
	if got := errs["password1"]; len(got) != 1 {
		t.Errorf("password1 errors = %v", got)
	}
}

func TestStruct_DashTagFallsBackToFieldName(t *testing.T) {
	errs := Struct(sample{Title: "ok", Email: "a@example.com", Password: "x", Confirm: "x"})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}
