package validation

import "testing"

func TestIsValidCheckinCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{name: "valid six digits", code: "123456", want: true},
		{name: "valid all zeros", code: "000000", want: true},
		{name: "empty", code: "", want: false},
		{name: "too short", code: "12345", want: false},
		{name: "too long", code: "1234567", want: false},
		{name: "letters", code: "12A456", want: false},
		{name: "dash", code: "123-45", want: false},
		{name: "spaces", code: " 12345", want: false},
		{name: "unicode digits", code: "１２３４５６", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCheckinCode(tt.code); got != tt.want {
				t.Fatalf("IsValidCheckinCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
