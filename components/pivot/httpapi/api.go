// Package httpapi exposes pivot commands and queries over HTTP.
package httpapi

import (
	"io"
	"net/http"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/queries"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handlers exposes net/http endpoints backed by shared commands and queries.
// Routing is left to the host; the gorouter package mounts the same commands
// on a go-router router.
type Handlers struct {
	ExpandAll   gocommand.Commander[commands.WidgetInput]
	CollapseAll gocommand.Commander[commands.WidgetInput]
	Toggle      gocommand.Commander[commands.ToggleInput]
	Sort        gocommand.Commander[commands.SortInput]
	Export      gocommand.Commander[commands.ExportInput]
	Load        gocommand.Commander[commands.LoadInput]
	HostEvent   gocommand.Commander[pivot.HostEvent]

	Grid    gocommand.Querier[queries.GridInput, queries.GridView]
	HTML    gocommand.Querier[queries.GridInput, string]
	Widgets gocommand.Querier[struct{}, []string]
}

func (h *Handlers) HandleListWidgets(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Widgets.Query(r.Context(), struct{}{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"widgets": ids})
}

func (h *Handlers) HandleGrid(w http.ResponseWriter, r *http.Request, widgetID string) {
	view, err := h.Grid.Query(r.Context(), queries.GridInput{WidgetID: widgetID})
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) HandleHTML(w http.ResponseWriter, r *http.Request, widgetID string) {
	html, err := h.HTML.Query(r.Context(), queries.GridInput{WidgetID: widgetID})
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (h *Handlers) HandleToggle(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.ToggleInput
	if !decode(w, r, &payload) {
		return
	}
	payload.WidgetID = widgetID
	execute(w, r, h.Toggle, payload, http.StatusAccepted)
}

func (h *Handlers) HandleSort(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.SortInput
	if !decode(w, r, &payload) {
		return
	}
	payload.WidgetID = widgetID
	execute(w, r, h.Sort, payload, http.StatusOK)
}

func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.ExportInput
	if r.ContentLength != 0 && !decode(w, r, &payload) {
		return
	}
	var path string
	payload.WidgetID = widgetID
	payload.Path = &path
	if err := h.Export.Execute(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (h *Handlers) HandleLoad(w http.ResponseWriter, r *http.Request, widgetID string) {
	var payload commands.LoadInput
	if !decode(w, r, &payload.Request) {
		return
	}
	payload.Request.WidgetID = widgetID
	execute(w, r, h.Load, payload, http.StatusAccepted)
}

func (h *Handlers) HandleHostEvent(w http.ResponseWriter, r *http.Request) {
	var payload pivot.HostEvent
	if !decode(w, r, &payload) {
		return
	}
	execute(w, r, h.HostEvent, payload, http.StatusAccepted)
}

func (h *Handlers) HandleExpandAll(w http.ResponseWriter, r *http.Request, widgetID string) {
	execute(w, r, h.ExpandAll, commands.WidgetInput{WidgetID: widgetID}, http.StatusOK)
}

func (h *Handlers) HandleCollapseAll(w http.ResponseWriter, r *http.Request, widgetID string) {
	execute(w, r, h.CollapseAll, commands.WidgetInput{WidgetID: widgetID}, http.StatusOK)
}

func execute[T any](w http.ResponseWriter, r *http.Request, cmd gocommand.Commander[T], msg T, status int) {
	if err := cmd.Execute(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	w.WriteHeader(status)
}
