package relay

import (
	"errors"
	"testing"
)

func TestParseRegistration(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		surname string
		first   string
		phone   string
		wantErr error
	}{
		{"canonical", "Karimov Javohir +998901234567", "Karimov", "Javohir", "+998901234567", nil},
		{"spaced phone", "Karimov Javohir +998 90 123 45 67", "Karimov", "Javohir", "+998901234567", nil},
		{"local number", "  Karimov   Javohir  901234567 ", "Karimov", "Javohir", "+998901234567", nil},
		{"two tokens", "Karimov Javohir", "", "", "", ErrFormat},
		{"empty", "", "", "", "", ErrFormat},
		{"garbage phone", "Karimov Javohir call-me", "", "", "", ErrPhone},
		{"too short", "Karimov Javohir 123", "", "", "", ErrPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := ParseRegistration(tt.text, "UZ")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if reg.Surname != tt.surname || reg.Name != tt.first || reg.Phone != tt.phone {
				t.Fatalf("got %+v", reg)
			}
		})
	}
}
