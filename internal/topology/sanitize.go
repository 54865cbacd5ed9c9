package topology

import "github.com/passbi/passbi_topology/internal/models"

// Sanitize returns a copy of t without stations that have no connection,
// along with the number of stations removed.
// Servings of removed stations are dropped and the remaining servings of each
// route are renumbered so sequences stay dense with termini at both ends.
func Sanitize(t *models.Topology) (*models.Topology, int) {
	connected := make(map[string]bool, len(t.Stations))
	for _, c := range t.Connections {
		connected[c.From] = true
		connected[c.To] = true
	}

	out := *t
	out.Stations = make([]models.Station, 0, len(connected))
	for _, s := range t.Stations {
		if connected[s.ID] {
			out.Stations = append(out.Stations, s)
		}
	}
	out.Connections = append([]models.Connection(nil), t.Connections...)
	out.Routes = append([]models.Route(nil), t.Routes...)

	if t.Servings != nil {
		kept := make([]models.Serving, 0, len(t.Servings))
		for _, sv := range t.Servings {
			if connected[sv.StationID] {
				kept = append(kept, sv)
			}
		}
		sortServings(kept)
		out.Servings = renumberServings(kept)
	}

	return &out, len(t.Stations) - len(out.Stations)
}

// renumberServings rewrites sequence and terminus per route.
// Input must be sorted by route and sequence.
func renumberServings(servings []models.Serving) []models.Serving {
	for start := 0; start < len(servings); {
		end := start
		for end < len(servings) && servings[end].RouteID == servings[start].RouteID {
			end++
		}

		for i := start; i < end; i++ {
			servings[i].Sequence = i - start + 1
			servings[i].IsTerminus = i == start || i == end-1
		}

		start = end
	}
	return servings
}
