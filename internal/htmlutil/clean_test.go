package htmlutil

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Bookings accelerate from 12 September.", "Bookings accelerate from 12 September."},
		{"trims whitespace", "  steady demand \n", "steady demand"},
		{"strips markup", "<p>Demand is <b>strong</b>.</p>", "Demand is strong."},
		{"lone angle bracket kept", "pickup > 15 seats", "pickup > 15 seats"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
