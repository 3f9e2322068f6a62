package validation

import (
	"testing"
)

func TestIsValidAccountID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"acct_customer1", true},
		{"acct-provider-2", true},
		{"ABC123", true},
		{"a", true},

		// Invalid cases
		{"", false},
		{"has space", false},
		{"has/slash", false},
		{"acct.dot", false},
		{string(make([]byte, 65)), false}, // too long
	}

	for _, tc := range tests {
		result := IsValidAccountID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidAccountID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("name", "John"),
		ValidAccountID("accountId", "acct_customer1"),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("name", ""),
		ValidAccountID("accountId", "bad id"),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
}

func TestPositiveAmount(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"100", true},
		{"0.50", true},
		{"0", false},
		{"-500", false},
		{"abc", false},
		{"", false},
	}

	for _, tc := range tests {
		err := PositiveAmount("amount", tc.value)()
		valid := err == nil
		if valid != tc.valid {
			t.Errorf("PositiveAmount(%q) valid=%v, want %v", tc.value, valid, tc.valid)
		}
	}
}

func TestRatingInRange(t *testing.T) {
	tests := []struct {
		value int
		valid bool
	}{
		{1, true},
		{3, true},
		{5, true},
		{0, false},
		{6, false},
		{-1, false},
	}

	for _, tc := range tests {
		err := RatingInRange("rating", tc.value)()
		valid := err == nil
		if valid != tc.valid {
			t.Errorf("RatingInRange(%d) valid=%v, want %v", tc.value, valid, tc.valid)
		}
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
