package flyStruct

import (
	"math"
	"testing"
)

func TestHeadingDegrees(t *testing.T) {
	tests := []struct {
		name  string
		from  Vec3
		to    Vec3
		want  float64
		exact bool
	}{
		{name: "toward +z", to: Vec3{Z: 1}, want: 180, exact: true},
		{name: "toward +x", to: Vec3{X: 1}, want: 90, exact: true},
		{name: "toward -z", to: Vec3{Z: -1}, want: 0},
		{name: "toward -x", to: Vec3{X: -1}, want: 270},
		{name: "height ignored", to: Vec3{X: 1, Y: 50}, want: 90},
		{name: "diagonal", from: Vec3{1, 2, 3}, to: Vec3{4, 5, 6}, want: 135},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HeadingDegrees(tc.from, tc.to)
			if tc.exact && got != tc.want {
				t.Errorf("HeadingDegrees() = %v, want exactly %v", got, tc.want)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("HeadingDegrees() = %v, want %v", got, tc.want)
			}
		})
	}
}
