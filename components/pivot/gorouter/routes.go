package gorouter

import (
	"context"
	"errors"
	"net/http"

	router "github.com/goliatone/go-router"
	jsoniter "github.com/json-iterator/go"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/httpapi"
	"github.com/goliatone/go-pivot/components/pivot/queries"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config wires go-router with the pivot commands, queries and event hub.
type Config[T any] struct {
	Router   router.Router[T]
	Handlers *httpapi.Handlers
	Events   *pivot.EventHub
	BasePath string
	Routes   RouteConfig
}

// RouteConfig customizes the relative paths used for pivot endpoints.
type RouteConfig struct {
	Widgets     string
	Widget      string
	HTML        string
	Toggle      string
	Sort        string
	ExpandAll   string
	CollapseAll string
	Export      string
	Load        string
	HostEvent   string
	WebSocket   string
}

// Register mounts pivot routes (JSON, HTML, commands, WebSocket) on a go-router
// router. Nil handler fields leave their routes unmounted.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Handlers == nil && cfg.Events == nil {
		return errors.New("gorouter: handlers or events are required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/api"
	}
	group := cfg.Router.Group(base)
	if cfg.Handlers != nil {
		registerQueries(group, cfg.Handlers, routes)
		registerCommands(group, cfg.Handlers, routes)
	}
	if cfg.Events != nil {
		registerWebSocket(group, cfg.Events, routes.WebSocket)
	}
	return nil
}

func registerQueries[T any](r router.Router[T], h *httpapi.Handlers, routes RouteConfig) {
	if h.Widgets != nil {
		r.Get(routes.Widgets, router.WrapHandler(func(ctx router.Context) error {
			ids, err := h.Widgets.Query(ctx.Context(), struct{}{})
			if err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusOK, map[string]any{"widgets": ids})
		}))
	}
	if h.Grid != nil {
		r.Get(routes.Widget, router.WrapHandler(func(ctx router.Context) error {
			view, err := h.Grid.Query(ctx.Context(), queries.GridInput{WidgetID: ctx.Param("id")})
			if err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusOK, view)
		}))
	}
	if h.HTML != nil {
		r.Get(routes.HTML, router.WrapHandler(func(ctx router.Context) error {
			html, err := h.HTML.Query(ctx.Context(), queries.GridInput{WidgetID: ctx.Param("id")})
			if err != nil {
				return respondError(ctx, err)
			}
			ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
			return ctx.Send([]byte(html))
		}))
	}
}

func registerCommands[T any](r router.Router[T], h *httpapi.Handlers, routes RouteConfig) {
	if h.Toggle != nil {
		r.Post(routes.Toggle, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.ToggleInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return badRequest(ctx, err)
			}
			payload.WidgetID = ctx.Param("id")
			return execute(ctx, h.Toggle.Execute, payload, http.StatusAccepted, "toggled")
		}))
	}
	if h.Sort != nil {
		r.Post(routes.Sort, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.SortInput
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return badRequest(ctx, err)
			}
			payload.WidgetID = ctx.Param("id")
			return execute(ctx, h.Sort.Execute, payload, http.StatusOK, "sorted")
		}))
	}
	if h.ExpandAll != nil {
		r.Post(routes.ExpandAll, router.WrapHandler(func(ctx router.Context) error {
			input := commands.WidgetInput{WidgetID: ctx.Param("id")}
			return execute(ctx, h.ExpandAll.Execute, input, http.StatusOK, "expanded")
		}))
	}
	if h.CollapseAll != nil {
		r.Post(routes.CollapseAll, router.WrapHandler(func(ctx router.Context) error {
			input := commands.WidgetInput{WidgetID: ctx.Param("id")}
			return execute(ctx, h.CollapseAll.Execute, input, http.StatusOK, "collapsed")
		}))
	}
	if h.Export != nil {
		r.Post(routes.Export, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.ExportInput
			if len(ctx.Body()) > 0 {
				if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
					return badRequest(ctx, err)
				}
			}
			var path string
			payload.WidgetID = ctx.Param("id")
			payload.Path = &path
			if err := h.Export.Execute(ctx.Context(), payload); err != nil {
				return respondError(ctx, err)
			}
			return ctx.JSON(http.StatusCreated, map[string]string{"path": path})
		}))
	}
	if h.Load != nil {
		r.Post(routes.Load, router.WrapHandler(func(ctx router.Context) error {
			var payload commands.LoadInput
			if err := json.Unmarshal(ctx.Body(), &payload.Request); err != nil {
				return badRequest(ctx, err)
			}
			payload.Request.WidgetID = ctx.Param("id")
			return execute(ctx, h.Load.Execute, payload, http.StatusAccepted, "queued")
		}))
	}
	if h.HostEvent != nil {
		r.Post(routes.HostEvent, router.WrapHandler(func(ctx router.Context) error {
			var payload pivot.HostEvent
			if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
				return badRequest(ctx, err)
			}
			return execute(ctx, h.HostEvent.Execute, payload, http.StatusAccepted, "dispatched")
		}))
	}
}

func registerWebSocket[T any](r router.Router[T], hub *pivot.EventHub, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		err := hub.Stream(ws.Context(), ws, ws.Query("widget"))
		if err != nil && !errors.Is(err, context.Canceled) {
			_ = ws.Close()
			return err
		}
		return ws.Close()
	})
}

func execute[M any](ctx router.Context, run func(context.Context, M) error, msg M, status int, label string) error {
	if err := run(ctx.Context(), msg); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(status, map[string]string{"status": label})
}

func badRequest(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func respondError(ctx router.Context, err error) error {
	return ctx.JSON(httpapi.StatusFor(err), map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Widgets == "" {
		routes.Widgets = "/widgets"
	}
	if routes.Widget == "" {
		routes.Widget = "/widgets/:id"
	}
	if routes.HTML == "" {
		routes.HTML = "/widgets/:id/html"
	}
	if routes.Toggle == "" {
		routes.Toggle = "/widgets/:id/toggle"
	}
	if routes.Sort == "" {
		routes.Sort = "/widgets/:id/sort"
	}
	if routes.ExpandAll == "" {
		routes.ExpandAll = "/widgets/:id/expand-all"
	}
	if routes.CollapseAll == "" {
		routes.CollapseAll = "/widgets/:id/collapse-all"
	}
	if routes.Export == "" {
		routes.Export = "/widgets/:id/export"
	}
	if routes.Load == "" {
		routes.Load = "/widgets/:id/load"
	}
	if routes.HostEvent == "" {
		routes.HostEvent = "/events"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/events/ws"
	}
	return routes
}
