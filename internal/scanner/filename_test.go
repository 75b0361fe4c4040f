package scanner

import "testing"

func TestParseDatetimeToken(t *testing.T) {
	cases := []struct {
		name     string
		baseName string
		wantTok  string
		wantOK   bool
	}{
		{"iso-style", "2024-05-06_10-00-00", "2024-05-06_10-00-00", true},
		{"compact-style", "20240506-100000", "20240506-100000", true},
		{"iso-style-with-suffix", "2024-05-06_10-00-00_mic1", "2024-05-06_10-00-00", true},
		{"invalid", "badname", "", false},
		{"empty", "", "", false},
		{"partial-date-only", "2024-05-06", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, ok := parseDatetimeToken(tc.baseName)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && tok != tc.wantTok {
				t.Fatalf("token = %q, want %q", tok, tc.wantTok)
			}
		})
	}
}
