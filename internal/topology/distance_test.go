package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected int
	}{
		{
			name:     "Coincident points clamp to 1",
			lat1:     14.7167,
			lon1:     -17.4677,
			lat2:     14.7167,
			lon2:     -17.4677,
			expected: 1,
		},
		{
			name:     "Sub-metre distance clamps to 1",
			lat1:     52.5200000,
			lon1:     13.4050000,
			lat2:     52.5200010,
			lon2:     13.4050000,
			expected: 1,
		},
		{
			name:     "Approximately 1km north",
			lat1:     14.7167,
			lon1:     -17.4677,
			lat2:     14.7257,
			lon2:     -17.4677,
			expected: 1001,
		},
		{
			name:     "One degree of longitude on the equator",
			lat1:     0,
			lon1:     0,
			lat2:     0,
			lon2:     1,
			expected: 111195,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2))
		})
	}
}

func TestDistanceIsSymmetricAndPositive(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{48.1372, 11.5756},
		{-33.8688, 151.2093},
		{40.7527, -73.9772},
		{40.7580, -73.9855},
	}

	for _, p := range points {
		for _, q := range points {
			d := Distance(p[0], p[1], q[0], q[1])
			assert.GreaterOrEqual(t, d, 1)
			assert.Equal(t, d, Distance(q[0], q[1], p[0], p[1]))
		}
	}
}

func TestDistanceTimesSquareToGrandCentral(t *testing.T) {
	d := Distance(40.7580, -73.9855, 40.7527, -73.9772)
	assert.InDelta(t, 920, d, 50)
}
