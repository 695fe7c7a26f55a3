package vehicles

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		vehicleID string
		lat, lng  float64
		wantErr   bool
	}{
		{"ok", "bus-1", 37.5665, 126.978, false},
		{"lat edge", "bus-1", 90, 180, false},
		{"lat low edge", "bus-1", -90, -180, false},
		{"empty id", "  ", 37.5, 127.0, true},
		{"lat too high", "bus-1", 90.1, 127.0, true},
		{"lat too low", "bus-1", -91, 127.0, true},
		{"lng too high", "bus-1", 37.5, 180.5, true},
		{"lng too low", "bus-1", 37.5, -181, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.vehicleID, tc.lat, tc.lng)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
