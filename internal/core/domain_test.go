package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero date, got %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 1, 15))
	if err != nil || string(b) != `"2024-01-15"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-29"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 2, 29).Time) {
		t.Fatalf("unexpected date %v", d)
	}
	if err := json.Unmarshal([]byte(`"15/01/2024"`), &d); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}

func TestDateFormat(t *testing.T) {
	d := NewDate(2024, 3, 7)
	cases := map[DateFormat]string{
		DateFormatISO: "2024-03-07",
		DateFormatEU:  "07/03/2024",
		DateFormatUS:  "03/07/2024",
		// written by the browser app as its default
		DateFormatDMYDash: "07-03-2024",
	}
	for f, want := range cases {
		if got := f.Format(d); got != want {
			t.Errorf("%s: got %q, want %q", f, got, want)
		}
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Username: "admin", Password: "admin123", Role: RoleAdmin}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []User{
		{Username: "", Password: "x", Role: RoleStaff},
		{Username: "bob", Password: "", Role: RoleStaff},
		{Username: "bob", Password: "x", Role: "owner"},
	}
	for i, u := range bads {
		if err := u.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestJobValidate(t *testing.T) {
	good := Job{Date: NewDate(2024, 1, 15), ClientName: "Acme", Amount: "100"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Job{
		{ClientName: "Acme", Amount: "100"},
		{Date: NewDate(2024, 1, 15), ClientName: " ", Amount: "100"},
		{Date: NewDate(2024, 1, 15), ClientName: "Acme", Amount: "ten"},
		{Date: NewDate(2024, 1, 15), ClientName: "Acme", Amount: "-5"},
	}
	for i, j := range bads {
		if err := j.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	s := DefaultSettings()
	s.Currency = "usd"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for lower-case currency")
	}
	s = DefaultSettings()
	s.Theme = "sepia"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for unknown theme")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	for _, err := range []error{ErrDuplicateUsername, ErrDuplicateProduct, ErrLastAdmin, ErrInvalidAmount, ErrInvalidDate, ErrInvalidMonth} {
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%v should be a validation error", err)
		}
	}
	if errors.Is(ErrNotFound, ErrValidation) {
		t.Errorf("not found must not be a validation error")
	}
}
