package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/gorouter"
	"github.com/goliatone/go-pivot/components/pivot/htmlview"
	"github.com/goliatone/go-pivot/components/pivot/httpapi"
	"github.com/goliatone/go-pivot/components/pivot/queries"
	"github.com/goliatone/go-pivot/components/pivot/xlsx"
)

const sseHeartbeat = 15 * time.Second

type serveCmd struct {
	Configs []string  `arg:"" type:"existingfile" help:"Pivot documents, one widget each."`
	Addr    string    `help:"Listen address (defaults to PIVOT_HTTP_ADDR)."`
	Data    dataFlags `embed:""`
}

// server holds everything mounted on the go-router fiber adapter.
type server struct {
	http     router.Server[*fiber.App]
	app      *fiber.App
	hub      *pivot.EventHub
	handlers *httpapi.Handlers
	tables   map[string]*table
	logger   zerolog.Logger
}

func (cmd *serveCmd) Run(ctx context.Context, rt *runtime) error {
	srv, err := newServer(ctx, rt, cmd.Configs, cmd.Data)
	if err != nil {
		return err
	}
	addr := cmd.Addr
	if addr == "" {
		addr = rt.Env.HTTPAddr
	}
	rt.Logger.Info().Str("addr", addr).Int("widgets", len(srv.tables)).Msg("pivot server listening")
	return srv.http.Serve(addr)
}

func newServer(ctx context.Context, rt *runtime, configs []string, data dataFlags) (*server, error) {
	if len(configs) == 0 {
		return nil, errors.New("pivotctl: serve needs at least one document")
	}
	docs := make([]*pivot.Document, 0, len(configs))
	for _, path := range configs {
		doc, err := loadDocument(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	exec, err := newExecutor(rt.Env, data, sourceOf(docs[0]))
	if err != nil {
		return nil, err
	}

	hub := pivot.NewEventHub()
	registry := pivot.NewRegistry()
	p := newPipeline(exec, tableOptions{
		Env:      rt.Env,
		Logger:   rt.Logger,
		Events:   hub,
		Registry: registry,
		Cache:    pivot.NewLayoutCache(rt.Env.LayoutCacheTTL),
	})
	tables := make(map[string]*table, len(docs))
	for i, doc := range docs {
		t, err := p.open(ctx, doc, configs[i])
		if err != nil {
			return nil, err
		}
		tables[t.id] = t
	}

	view, err := htmlview.New(htmlview.Options{})
	if err != nil {
		return nil, err
	}
	telemetry := p.telemetry
	exporter := xlsx.NewExporter(xlsx.Options{Dir: rt.Env.ExportDir, Logger: &rt.Logger})
	grid := queries.NewGridQuery(registry)
	handlers := &httpapi.Handlers{
		ExpandAll:   commands.NewExpandAllCommand(registry, telemetry),
		CollapseAll: commands.NewCollapseAllCommand(registry, telemetry),
		Toggle:      commands.NewToggleCommand(registry, telemetry),
		Sort:        commands.NewSortCommand(registry, telemetry),
		Export:      commands.NewExportCommand(registry, exporter, telemetry),
		Load:        p.load,
		HostEvent:   commands.NewHostEventCommand(pivot.NewDispatcher(registry, exporter, telemetry)),
		Grid:        grid,
		HTML:        queries.NewHTMLQuery(grid, view),
		Widgets:     queries.NewWidgetsQuery(registry),
	}
	adapter := router.NewFiberAdapter()
	srv := &server{
		http:     adapter,
		app:      adapter.WrappedRouter(),
		hub:      hub,
		handlers: handlers,
		tables:   tables,
		logger:   rt.Logger,
	}
	if err := srv.routes(); err != nil {
		return nil, err
	}
	return srv, nil
}

// routes mounts the pivot API, WebSocket, health and reload through go-router.
// The SSE stream stays on the wrapped fiber app for fasthttp's body stream
// writer.
func (s *server) routes() error {
	r := s.http.Router()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:   r,
		Handlers: s.handlers,
		Events:   s.hub,
	}); err != nil {
		return err
	}
	r.Get("/healthz", router.WrapHandler(func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, map[string]any{"status": "ok", "widgets": len(s.tables)})
	}))
	r.Post("/reload/:id", router.WrapHandler(s.reload))
	s.app.Get("/events", s.streamEvents)
	return nil
}

// reload fetches the widget's rows again with its document request.
func (s *server) reload(ctx router.Context) error {
	id := ctx.Param("id")
	t, ok := s.tables[id]
	if !ok {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown widget %s", id)})
	}
	if err := t.reload(ctx.Context()); err != nil {
		s.logger.Error().Err(err).Str("widget", t.id).Msg("reload failed")
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"status": "reloaded"})
}

// streamEvents serves the hub as Server-Sent Events on fasthttp's body
// stream. A heartbeat comment detects closed clients while idle.
func (s *server) streamEvents(c *fiber.Ctx) error {
	widget := c.Query("widget")
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events, cancel := s.hub.Subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
			case event, ok := <-events:
				if !ok {
					return
				}
				if widget != "" && event.WidgetID != widget {
					continue
				}
				if err := pivot.WriteSSE(w, event); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
