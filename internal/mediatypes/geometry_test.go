package mediatypes

import "testing"

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		want          AspectRatio
		orientation   Orientation
	}{
		{"full hd", 1920, 1080, AspectRatio{16, 9}, OrientationLandscape},
		{"portrait phone", 3024, 4032, AspectRatio{3, 4}, OrientationPortrait},
		{"square", 512, 512, AspectRatio{1, 1}, OrientationSquare},
		{"coprime", 7, 5, AspectRatio{7, 5}, OrientationLandscape},
		{"zero width", 0, 1080, AspectRatio{}, OrientationSquare},
		{"zero height", 1920, 0, AspectRatio{}, OrientationSquare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResolution(tt.width, tt.height)
			got := res.AspectRatio()
			if got != tt.want {
				t.Errorf("AspectRatio() = %+v, want %+v", got, tt.want)
			}
			if o := res.Orientation(); o != tt.orientation {
				t.Errorf("Orientation() = %v, want %v", o, tt.orientation)
			}
		})
	}
}

func TestAspectRatioIsZero(t *testing.T) {
	if !NewAspectRatio(0, 0).IsZero() {
		t.Error("0:0 should be zero")
	}
	if NewAspectRatio(4, 3).IsZero() {
		t.Error("4:3 should not be zero")
	}
}
