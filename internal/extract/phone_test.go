package extract

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in          string
		want        string
		wantChanged bool
	}{
		{"5551234567", "555-123-4567", true},
		{"(555) 123-4567", "555-123-4567", true},
		{"555.123.4567", "555-123-4567", true},
		{"1-555-123-4567", "555-123-4567", true},
		{"+1 555 123 4567", "555-123-4567", true},
		{"555-123-4567", "555-123-4567", false},
		// Wrong digit counts pass through untouched.
		{"12345", "12345", false},
		{"555-123-4567 ext 22", "555-123-4567 ext 22", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, changed := NormalizePhone(tc.in)
		if got != tc.want || changed != tc.wantChanged {
			t.Errorf("NormalizePhone(%q) = (%q, %v), want (%q, %v)",
				tc.in, got, changed, tc.want, tc.wantChanged)
		}
	}
}
