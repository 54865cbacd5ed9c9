package topology

import (
	"testing"

	"github.com/passbi/passbi_topology/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInferTransportType(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		lineName string
		expected models.TransportType
	}{
		{name: "Metro from U code", code: "U1", lineName: "Ring", expected: models.TransportMetro},
		{name: "Metro with spaced lowercase code", code: "u 2", lineName: "", expected: models.TransportMetro},
		{name: "Urban rail from S code", code: "S3", lineName: "Airport", expected: models.TransportUrbanRail},
		{name: "Tram keyword in name", code: "", lineName: "City Tram 4", expected: models.TransportTram},
		{name: "Bus keyword", code: "BUS 12", lineName: "", expected: models.TransportBus},
		{name: "Bus B prefix", code: "B7", lineName: "Night", expected: models.TransportBus},
		{name: "Letter without digits is not metro", code: "SX", lineName: "Express", expected: models.TransportTrain},
		{name: "Default to train", code: "RE1", lineName: "Regional", expected: models.TransportTrain},
		{name: "Empty defaults to train", code: "", lineName: "", expected: models.TransportTrain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferTransportType(tt.code, tt.lineName))
		})
	}
}

func TestInferRouteShape(t *testing.T) {
	tests := []struct {
		name     string
		stations []string
		expected models.RouteType
	}{
		{name: "Circular", stations: []string{"A", "B", "C", "A"}, expected: models.RouteCircular},
		{name: "Out and back", stations: []string{"A", "B", "A", "C"}, expected: models.RouteOutAndBack},
		{name: "Linear", stations: []string{"A", "B", "C"}, expected: models.RouteLinear},
		{name: "Two stops same station", stations: []string{"A", "A"}, expected: models.RouteCircular},
		{name: "Single stop", stations: []string{"A"}, expected: models.RouteLinear},
		{name: "Empty", stations: nil, expected: models.RouteLinear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferRouteShape(tt.stations))
		})
	}
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "U1", RouteName(" U1 ", "Ring Line"))
	assert.Equal(t, "Long Line ", RouteName("", " Long Line Name Here "))
	assert.Equal(t, "Überlandli", RouteName("Überlandlinie", ""))
	assert.Equal(t, "ROUTE", RouteName(" ", ""))
}

func TestNormalizeHexColor(t *testing.T) {
	color := func(s string) *string { return &s }

	tests := []struct {
		name     string
		raw      *string
		expected string
	}{
		{name: "Missing", raw: nil, expected: "#808080"},
		{name: "Empty", raw: color("  "), expected: "#808080"},
		{name: "Hash form uppercased", raw: color("#a1b2c3"), expected: "#A1B2C3"},
		{name: "Bare hex", raw: color("a1b2c3"), expected: "#A1B2C3"},
		{name: "0x with alpha", raw: color("0xFF112233"), expected: "#112233"},
		{name: "0x without alpha", raw: color("0X112233"), expected: "#112233"},
		{name: "0x with invalid digits", raw: color("0xZZZZZZ"), expected: "#808080"},
		{name: "Named color", raw: color("red"), expected: "#808080"},
		{name: "Short hex", raw: color("#fff"), expected: "#808080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHexColor(tt.raw))
		})
	}
}
