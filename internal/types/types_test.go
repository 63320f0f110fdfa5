package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		wantErr  bool
	}{
		{"Cost", CategoryCost, false},
		{"cost", CategoryCost, false},
		{"  Security ", CategorySecurity, false},
		{"High Availability", CategoryReliability, false},
		{"HighAvailability", CategoryReliability, false},
		{"Reliability", CategoryReliability, false},
		{"Operational Excellence", CategoryOperationalExcellence, false},
		{"operational_excellence", CategoryOperationalExcellence, false},
		{"Performance", CategoryPerformance, false},
		{"Cheapness", "", true},
		{"", "", true},
	}
	for _, test := range tests {
		result, err := ParseCategory(test.input)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseCategory(%q) expected error, got %q", test.input, result)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCategory(%q) returned error: %v", test.input, err)
			continue
		}
		if diff := cmp.Diff(result, test.expected); diff != "" {
			t.Error(diff)
		}
	}
}

func TestParseImpact(t *testing.T) {
	tests := []struct {
		input    string
		expected Impact
		wantErr  bool
	}{
		{"High", ImpactHigh, false},
		{"medium", ImpactMedium, false},
		{"Moderate", ImpactMedium, false},
		{"LOW", ImpactLow, false},
		{"severe", "", true},
	}
	for _, test := range tests {
		result, err := ParseImpact(test.input)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseImpact(%q) expected error, got %q", test.input, result)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseImpact(%q) returned error: %v", test.input, err)
			continue
		}
		if diff := cmp.Diff(result, test.expected); diff != "" {
			t.Error(diff)
		}
	}
}

func TestReservationKindSavingsEligible(t *testing.T) {
	tests := []struct {
		kind     ReservationKind
		expected bool
	}{
		{ReservationNone, true},
		{ReservedInstance, true},
		{SavingsPlan, true},
		{ReservedCapacity, true},
		{CapacityReservation, false},
	}
	for _, test := range tests {
		if result := test.kind.SavingsEligible(); result != test.expected {
			t.Errorf("SavingsEligible(%q) = %v, expected %v", test.kind, result, test.expected)
		}
	}
}

func TestCommitmentTermJSON(t *testing.T) {
	known, err := json.Marshal(TermOfYears(3))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(known), "3"); diff != "" {
		t.Error(diff)
	}

	unknown, err := json.Marshal(TermUnknown)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(unknown), "null"); diff != "" {
		t.Error(diff)
	}

	var roundtrip CommitmentTerm
	if err := json.Unmarshal([]byte("null"), &roundtrip); err != nil {
		t.Fatal(err)
	}
	if roundtrip.Known() {
		t.Error("unmarshalled null term should not be known")
	}
	if err := json.Unmarshal([]byte("1"), &roundtrip); err != nil {
		t.Fatal(err)
	}
	years, ok := roundtrip.Years()
	if !ok || years != 1 {
		t.Errorf("unmarshalled term = (%d, %v), expected (1, true)", years, ok)
	}
}

func TestCommitmentTermValue(t *testing.T) {
	value, err := TermOfYears(1).Value()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(value, int64(1)); diff != "" {
		t.Error(diff)
	}

	value, err = TermUnknown.Value()
	if err != nil {
		t.Fatal(err)
	}
	if value != nil {
		t.Errorf("unknown term Value() = %v, expected nil", value)
	}

	var scanned CommitmentTerm
	if err := scanned.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if scanned.Known() {
		t.Error("scanned NULL term should not be known")
	}
	if err := scanned.Scan(int64(3)); err != nil {
		t.Fatal(err)
	}
	years, ok := scanned.Years()
	if !ok || years != 3 {
		t.Errorf("scanned term = (%d, %v), expected (3, true)", years, ok)
	}
}

func TestIsTransient(t *testing.T) {
	base := errors.New("connection reset")
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"plain error", base, false},
		{"transient", Transient("fetch csv", base), true},
		{"fatal", Fatal("load template", base), false},
		{"wrapped transient", fmt.Errorf("render: %w", Transient("navigate", base)), true},
		{"fatal over transient", Fatal("render", Transient("navigate", base)), false},
		{"nil", nil, false},
	}
	for _, test := range tests {
		if result := IsTransient(test.err); result != test.expected {
			t.Errorf("%s: IsTransient = %v, expected %v", test.name, result, test.expected)
		}
	}
}
