package topology

import (
	"regexp"
	"strings"

	"github.com/passbi/passbi_topology/internal/models"
)

const (
	maxRouteNameLength = 10
	defaultRouteName   = "ROUTE"
	defaultHexColor    = "#808080"
)

var (
	metroCode     = regexp.MustCompile(`^U[0-9]+`)
	urbanRailCode = regexp.MustCompile(`^S[0-9]+`)
	hashHexColor  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	bareHexColor  = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)
)

// InferTransportType determines the transport mode from a line's code and name
// Priority: U-code, S-code, TRAM keyword, bus prefix, default to Train
func InferTransportType(code, name string) models.TransportType {
	text := strings.TrimSpace(strings.ToUpper(code + " " + name))
	compact := strings.ReplaceAll(text, " ", "")

	switch {
	case metroCode.MatchString(compact):
		return models.TransportMetro
	case urbanRailCode.MatchString(compact):
		return models.TransportUrbanRail
	case strings.Contains(text, "TRAM"):
		return models.TransportTram
	case strings.HasPrefix(text, "BUS") || strings.HasPrefix(compact, "B"):
		return models.TransportBus
	}

	return models.TransportTrain
}

// InferRouteShape classifies a sequence of station keys
func InferRouteShape(stations []string) models.RouteType {
	if len(stations) >= 2 && stations[0] == stations[len(stations)-1] {
		return models.RouteCircular
	}

	seen := make(map[string]bool, len(stations))
	for _, s := range stations {
		if seen[s] {
			return models.RouteOutAndBack
		}
		seen[s] = true
	}

	return models.RouteLinear
}

// RouteName picks the short display name of a route, capped at 10 characters
func RouteName(code, name string) string {
	candidate := strings.TrimSpace(code)
	if candidate == "" {
		candidate = strings.TrimSpace(name)
	}
	if candidate == "" {
		return defaultRouteName
	}

	r := []rune(candidate)
	if len(r) > maxRouteNameLength {
		return string(r[:maxRouteNameLength])
	}
	return candidate
}

// NormalizeHexColor converts an export color into #RRGGBB.
// Accepts "#rrggbb", "rrggbb", "0xRRGGBB" and "0xAARRGGBB"; anything else is grey.
func NormalizeHexColor(raw *string) string {
	if raw == nil {
		return defaultHexColor
	}

	s := strings.TrimSpace(*raw)
	switch {
	case s == "":
		return defaultHexColor
	case hashHexColor.MatchString(s):
		return strings.ToUpper(s)
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		h := s[2:]
		if len(h) == 8 {
			h = h[2:] // drop alpha channel
		}
		if len(h) >= 6 && bareHexColor.MatchString(h[len(h)-6:]) {
			return "#" + strings.ToUpper(h[len(h)-6:])
		}
	case bareHexColor.MatchString(s):
		return "#" + strings.ToUpper(s)
	}

	return defaultHexColor
}
