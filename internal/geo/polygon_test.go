package geo

import "testing"

// rectangle around central Tokyo, [lng, lat] pairs, closed
var tokyoRect = [][2]float64{
	{139.68, 35.70},
	{139.78, 35.70},
	{139.78, 35.65},
	{139.68, 35.65},
	{139.68, 35.70},
}

func TestPointInRing(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{"center", 35.67, 139.73, true},
		{"west of rectangle", 35.67, 139.60, false},
		{"east of rectangle", 35.67, 139.90, false},
		{"north of rectangle", 35.75, 139.73, false},
		{"south of rectangle", 35.60, 139.73, false},
		{"on west edge", 35.67, 139.68, true},
		{"on north edge", 35.70, 139.73, true},
		{"on corner vertex", 35.70, 139.68, true},
		{"just inside corner", 35.6999, 139.6801, true},
		{"just outside corner", 35.7001, 139.6799, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInRing(tt.lat, tt.lng, tokyoRect); got != tt.want {
				t.Errorf("PointInRing(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestPointInRing_ConcavePolygon(t *testing.T) {
	// U-shape opening north; the notch between the arms is outside
	ring := [][2]float64{
		{0, 0}, {4, 0}, {4, 4}, {3, 4}, {3, 1}, {1, 1}, {1, 4}, {0, 4}, {0, 0},
	}

	if !PointInRing(0.5, 0.5, ring) {
		t.Error("point in left arm should be inside")
	}
	if !PointInRing(2, 3.5, ring) {
		t.Error("point in right arm should be inside")
	}
	if PointInRing(3, 2, ring) {
		t.Error("point in the notch should be outside")
	}
}

func TestPointInRing_DegenerateRing(t *testing.T) {
	if PointInRing(0, 0, nil) {
		t.Error("nil ring should contain nothing")
	}
	if PointInRing(0, 0, [][2]float64{{0, 0}, {1, 1}, {0, 0}}) {
		t.Error("ring below minimum size should contain nothing")
	}
}

func TestValidateRing(t *testing.T) {
	tests := []struct {
		name    string
		ring    [][2]float64
		wantErr bool
	}{
		{"valid rectangle", tokyoRect, false},
		{"too few vertices", [][2]float64{{0, 0}, {1, 1}, {0, 0}}, true},
		{"not closed", [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, true},
		{"duplicate vertices collapse below 3", [][2]float64{{0, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 0}}, true},
		{"longitude out of range", [][2]float64{{0, 0}, {181, 0}, {1, 1}, {0, 0}}, true},
		{"latitude out of range", [][2]float64{{0, 0}, {1, 0}, {1, 91}, {0, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRing(tt.ring)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRing() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
