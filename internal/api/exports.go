package api

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_topology/internal/cache"
	"github.com/passbi/passbi_topology/internal/export"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
)

const exportWait = 5 * time.Second

// ExportCache stores rendered exports keyed by topology version
type ExportCache interface {
	GetExport(ctx context.Context, key string) ([]byte, error)
	SetExport(ctx context.Context, key string, data []byte) error
	AcquireLock(ctx context.Context, exportKey string) (bool, error)
	ReleaseLock(ctx context.Context, exportKey string) error
	WaitForExport(ctx context.Context, exportKey string, maxWait time.Duration) ([]byte, error)
}

type exportFormat struct {
	name        string
	contentType string
	filename    string
	render      func(h *Handlers, t *models.Topology) ([]byte, error)
}

var (
	graphMLFormat = exportFormat{
		name:        "graphml",
		contentType: "application/xml; charset=utf-8",
		filename:    "topology.graphml",
		render: func(h *Handlers, t *models.Topology) ([]byte, error) {
			var buf bytes.Buffer
			if err := export.WriteGraphML(&buf, t); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	}

	cypherFormat = exportFormat{
		name:        "cypher",
		contentType: "text/plain; charset=utf-8",
		filename:    "topology.cypher",
		render: func(h *Handlers, t *models.Topology) ([]byte, error) {
			var buf bytes.Buffer
			if err := export.WriteCypher(&buf, t, export.NewCypherMeta(h.now())); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	}
)

// ExportGraphML handles GET /v1/export/graphml
func (h *Handlers) ExportGraphML(c *fiber.Ctx) error {
	return h.serveExport(c, graphMLFormat)
}

// ExportCypher handles GET /v1/export/cypher
func (h *Handlers) ExportCypher(c *fiber.Ctx) error {
	return h.serveExport(c, cypherFormat)
}

func (h *Handlers) serveExport(c *fiber.Ctx, format exportFormat) error {
	t, version := h.graph.Snapshot()
	if t == nil {
		return notLoaded(c)
	}

	data, cacheStatus, err := h.loadExport(c.Context(), format, t, version)
	if err != nil {
		logger.Error("Export rendering failed", "format", format.name, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "export rendering failed",
		})
	}

	c.Set(fiber.HeaderContentType, format.contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", format.filename))
	c.Set("X-Topology-Version", version)
	c.Set("X-Cache", cacheStatus)
	return c.Send(data)
}

// loadExport returns the cached export when present. Otherwise one caller
// renders and fills the cache while the others wait for it. Any cache
// failure falls back to rendering directly.
func (h *Handlers) loadExport(ctx context.Context, format exportFormat, t *models.Topology, version string) ([]byte, string, error) {
	if h.exports == nil {
		data, err := format.render(h, t)
		return data, "BYPASS", err
	}

	key := cache.ExportKey(format.name, version)

	data, err := h.exports.GetExport(ctx, key)
	if err != nil {
		logger.Warn("Export cache read failed", "key", key, "err", err)
		data, err := format.render(h, t)
		return data, "BYPASS", err
	}
	if data != nil {
		return data, "HIT", nil
	}

	acquired, err := h.exports.AcquireLock(ctx, key)
	if err != nil {
		logger.Warn("Export cache lock failed", "key", key, "err", err)
		data, err := format.render(h, t)
		return data, "BYPASS", err
	}

	if !acquired {
		data, err := h.exports.WaitForExport(ctx, key, exportWait)
		if err == nil && data != nil {
			return data, "HIT", nil
		}
		if err != nil {
			logger.Warn("Timed out waiting for export", "key", key, "err", err)
		}
		data, err = format.render(h, t)
		return data, "MISS", err
	}

	defer func() {
		if err := h.exports.ReleaseLock(ctx, key); err != nil {
			logger.Warn("Export cache unlock failed", "key", key, "err", err)
		}
	}()

	data, err = format.render(h, t)
	if err != nil {
		return nil, "MISS", err
	}
	if err := h.exports.SetExport(ctx, key, data); err != nil {
		logger.Warn("Export cache write failed", "key", key, "err", err)
	}
	return data, "MISS", nil
}
