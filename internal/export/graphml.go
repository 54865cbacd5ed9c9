package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/passbi/passbi_topology/internal/models"
)

const (
	graphMLNamespace      = "http://graphml.graphdrawing.org/xmlns"
	graphMLSchemaLocation = "http://graphml.graphdrawing.org/xmlns http://graphml.graphdrawing.org/xmlns/1.0/graphml.xsd"
	xsiNamespace          = "http://www.w3.org/2001/XMLSchema-instance"
)

type graphMLDoc struct {
	XMLName        xml.Name     `xml:"graphml"`
	Xmlns          string       `xml:"xmlns,attr"`
	XSI            string       `xml:"xmlns:xsi,attr"`
	SchemaLocation string       `xml:"xsi:schemaLocation,attr"`
	Keys           []graphMLKey `xml:"key"`
	Graph          graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// WriteGraphML writes the stations and connections of t as a GraphML document.
// Nodes are sorted by identifier, edges keep the topology order and are
// numbered e0..eN.
func WriteGraphML(w io.Writer, t *models.Topology) error {
	edgeDefault := "undirected"
	if t.Directed {
		edgeDefault = "directed"
	}

	stations := append([]models.Station(nil), t.Stations...)
	sort.Slice(stations, func(i, j int) bool {
		return stations[i].ID < stations[j].ID
	})

	doc := graphMLDoc{
		Xmlns:          graphMLNamespace,
		XSI:            xsiNamespace,
		SchemaLocation: graphMLSchemaLocation,
		Keys: []graphMLKey{
			{ID: "name", For: "node", AttrName: "name", AttrType: "string"},
			{ID: "latitude", For: "node", AttrName: "latitude", AttrType: "double"},
			{ID: "longitude", For: "node", AttrName: "longitude", AttrType: "double"},
			{ID: "distance", For: "edge", AttrName: "distance", AttrType: "int"},
		},
		Graph: graphMLGraph{
			ID:          "G",
			EdgeDefault: edgeDefault,
			Nodes:       make([]graphMLNode, 0, len(stations)),
			Edges:       make([]graphMLEdge, 0, len(t.Connections)),
		},
	}

	for _, s := range stations {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{
			ID: s.ID,
			Data: []graphMLData{
				{Key: "name", Value: s.Name},
				{Key: "latitude", Value: formatCoordinate(s.Lat)},
				{Key: "longitude", Value: formatCoordinate(s.Lon)},
			},
		})
	}

	for i, c := range t.Connections {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			ID:     fmt.Sprintf("e%d", i),
			Source: c.From,
			Target: c.To,
			Data:   []graphMLData{{Key: "distance", Value: strconv.Itoa(c.Distance)}},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write graphml header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graphml: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write graphml: %w", err)
	}

	return nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
