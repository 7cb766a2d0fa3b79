package envutil

import "testing"

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"yes":   true,
		"on":    true,
		"false": false,
		"0":     false,
		"":      false,
	}
	for input, want := range cases {
		if got := ParseBool(input); got != want {
			t.Fatalf("ParseBool(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestFirstSkipsBlankValues(t *testing.T) {
	t.Setenv("PS_TEST_A", "  ")
	t.Setenv("PS_TEST_B", "value-b")
	t.Setenv("PS_TEST_C", "value-c")
	value, key := First("PS_TEST_MISSING", "PS_TEST_A", "PS_TEST_B", "PS_TEST_C")
	if value != "value-b" || key != "PS_TEST_B" {
		t.Fatalf("First = %q from %q", value, key)
	}
	if value, key := First("PS_TEST_MISSING"); value != "" || key != "" {
		t.Fatalf("expected nothing, got %q from %q", value, key)
	}
}
