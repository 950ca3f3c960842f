package location

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
	}{
		{"one degree on the equator", 0, 0, 0, 1, EarthRadiusMeters * math.Pi / 180},
		{"big ben to soho", 51.5007042, -0.1245721, 51.5128, -0.1335, 1481.7949471991535},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343940.9229375969},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Haversine(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("Haversine = %.9f, want %.9f", got, tc.want)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	points := [][2]float64{
		{51.5007042, -0.1245721},
		{51.5128, -0.1335},
		{-33.8688, 151.2093},
		{0, 0},
		{89.9, 179.9},
	}

	for _, a := range points {
		for _, b := range points {
			ab := Haversine(a[0], a[1], b[0], b[1])
			ba := Haversine(b[0], b[1], a[0], a[1])
			if ab != ba {
				t.Errorf("Haversine(%v, %v) = %v but reversed = %v", a, b, ab, ba)
			}
		}
		if d := Haversine(a[0], a[1], a[0], a[1]); d != 0 {
			t.Errorf("Haversine(%v, %v) = %v, want 0", a, a, d)
		}
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{51.5, -0.12, true},
		{90, 180, true},
		{-90, -180, true},
		{90.01, 0, false},
		{0, 180.5, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}

	for _, tc := range tests {
		if got := ValidCoordinates(tc.lat, tc.lng); got != tc.want {
			t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tc.lat, tc.lng, got, tc.want)
		}
	}
}

func TestHaversineAntipodesFinite(t *testing.T) {
	half := math.Pi * EarthRadiusMeters
	for lat := -90.0; lat <= 90; lat += 0.37 {
		for lng := -180.0; lng <= 0; lng += 1 {
			d := Haversine(lat, lng, -lat, lng+180)
			if math.IsNaN(d) || d > half+1e-6 {
				t.Fatalf("Haversine(%v, %v, %v, %v) = %v, want finite <= %v", lat, lng, -lat, lng+180, d, half)
			}
		}
	}
	if d := Haversine(0, 0, 0, 180); math.Abs(d-half) > 1e-6 {
		t.Errorf("equator antipode = %v, want %v", d, half)
	}
}
