package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/tablecard"
	"github.com/goliatone/go-pivot/components/pivot/xlsx"
	"github.com/goliatone/go-pivot/pkg/config"
	"github.com/goliatone/go-pivot/pkg/logging"
	"github.com/goliatone/go-pivot/pkg/query"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultSource = "default"

// readDataset loads rows from .json, .yaml/.yml or .xlsx files. JSON and
// YAML files hold either {columns, rows} or a list of records.
func readDataset(path, sheet string) (pivot.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsx.ReadDataset(path, sheet)
	case ".json", ".yaml", ".yml":
	default:
		return pivot.Dataset{}, fmt.Errorf("pivotctl: unsupported data file %s", path)
	}
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("pivotctl: read %s: %w", path, err)
	}
	var doc any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("pivotctl: parse %s: %w", path, err)
	}
	return datasetFrom(doc)
}

func datasetFrom(doc any) (pivot.Dataset, error) {
	switch v := doc.(type) {
	case map[string]any:
		var ds pivot.Dataset
		data, err := json.Marshal(v)
		if err != nil {
			return ds, err
		}
		if err := json.Unmarshal(data, &ds); err != nil {
			return ds, fmt.Errorf("pivotctl: dataset: %w", err)
		}
		return ds, nil
	case []any:
		return recordsDataset(v)
	default:
		return pivot.Dataset{}, fmt.Errorf("pivotctl: dataset must be an object or a list, got %T", doc)
	}
}

// recordsDataset keeps first-seen column order across records.
func recordsDataset(items []any) (pivot.Dataset, error) {
	var ds pivot.Dataset
	index := map[string]int{}
	records := make([]map[string]any, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return ds, fmt.Errorf("pivotctl: record %d is %T, want object", i, item)
		}
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if _, seen := index[k]; !seen {
				keys = append(keys, k)
			}
		}
		// map order is random; new keys of one record are added sorted
		sort.Strings(keys)
		for _, k := range keys {
			index[k] = len(ds.Columns)
			ds.Columns = append(ds.Columns, k)
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		row := make([]any, len(ds.Columns))
		for k, v := range rec {
			row[index[k]] = v
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// dataFlags selects the rows a document is built from.
type dataFlags struct {
	Data    string            `short:"d" type:"existingfile" help:"Row file (.json, .yaml, .xlsx) served as the document source."`
	Source  map[string]string `help:"Additional named sources (name=path)."`
	Sheet   string            `help:"Sheet read from .xlsx row files (first sheet when empty)."`
	GroupBy bool              `name:"group-by" help:"Pre-aggregate rows by the requested dimensions before pivoting."`
}

// sources keys the --data file by the document source.
func (f dataFlags) sources(source string) map[string]string {
	out := make(map[string]string, len(f.Source)+1)
	for k, v := range f.Source {
		out[k] = v
	}
	if f.Data != "" {
		out[source] = f.Data
	}
	return out
}

// table bundles one pivot document with the pipeline that feeds it.
type table struct {
	doc      *pivot.Document
	id       string
	env      config.Env
	registry *pivot.Registry
	widget   *pivot.Widget
	load     *commands.LoadCommand
}

type tableOptions struct {
	Env       config.Env
	Logger    zerolog.Logger
	Events    pivot.EventSink
	Scheduler pivot.Scheduler
	Registry  *pivot.Registry
	Cache     *pivot.LayoutCache
}

// pipeline feeds widgets of one registry from a shared executor.
type pipeline struct {
	env       config.Env
	registry  *pivot.Registry
	load      *commands.LoadCommand
	telemetry pivot.Telemetry
}

func newPipeline(exec query.Executor, opts tableOptions) *pipeline {
	if opts.Registry == nil {
		opts.Registry = pivot.NewRegistry()
	}
	telemetry := logging.NewTelemetry(opts.Logger)
	card := tablecard.New(tablecard.Options{Executor: exec, Telemetry: telemetry})
	widgetOpts := pivot.WidgetOptions{
		Telemetry: telemetry,
		Events:    opts.Events,
		Scheduler: opts.Scheduler,
		Cache:     opts.Cache,
	}
	return &pipeline{
		env:       opts.Env,
		registry:  opts.Registry,
		load:      commands.NewLoadCommand(opts.Registry, card, widgetOpts, telemetry),
		telemetry: telemetry,
	}
}

// open loads the document's rows through the table card so filters and
// custom-column scopes apply as they would against a remote executor.
func (p *pipeline) open(ctx context.Context, doc *pivot.Document, configPath string) (*table, error) {
	t := &table{
		doc:      doc,
		id:       widgetID(doc, configPath),
		env:      p.env,
		registry: p.registry,
		load:     p.load,
	}
	if err := t.reload(ctx); err != nil {
		return nil, err
	}
	var err error
	if t.widget, err = p.registry.Get(t.id); err != nil {
		return nil, err
	}
	return t, nil
}

func loadDocument(path string) (*pivot.Document, error) {
	return pivot.LoadDocumentFile(path, pivot.NewSchemaValidator())
}

// openTable builds a single-widget pipeline for one document.
func openTable(ctx context.Context, configPath string, data dataFlags, opts tableOptions) (*table, error) {
	doc, err := loadDocument(configPath)
	if err != nil {
		return nil, err
	}
	exec, err := newExecutor(opts.Env, data, sourceOf(doc))
	if err != nil {
		return nil, err
	}
	return newPipeline(exec, opts).open(ctx, doc, configPath)
}

// reload fetches the rows again; widget state survives unless the data
// identity changed.
func (t *table) reload(ctx context.Context) error {
	return t.load.Execute(ctx, commands.LoadInput{Request: t.request()})
}

func (t *table) request() tablecard.Request {
	style := t.doc.Style
	if style.Title == "" {
		style.Title = t.doc.DisplayTitle()
	}
	if style.AnimationMs == 0 && t.env.AnimationDuration > 0 {
		style.AnimationMs = int(t.env.AnimationDuration / time.Millisecond)
	}
	return tablecard.Request{
		WidgetID:      t.id,
		Source:        sourceOf(t.doc),
		Config:        t.doc.Pivot,
		Values:        t.doc.Values,
		Style:         style,
		Where:         pivot.Where(t.doc.Where),
		CustomColumns: t.doc.CustomColumns,
	}
}

func sourceOf(doc *pivot.Document) string {
	if doc.Source == "" {
		return defaultSource
	}
	return doc.Source
}

func widgetID(doc *pivot.Document, configPath string) string {
	if doc.ID != "" {
		return doc.ID
	}
	return strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
}

// newExecutor serves local row files from memory and falls back to the
// remote query endpoint when no file is given.
func newExecutor(env config.Env, data dataFlags, source string) (query.Executor, error) {
	files := data.sources(source)
	if len(files) == 0 {
		if env.QueryEndpoint == "" {
			return nil, fmt.Errorf("pivotctl: no data file and no PIVOT_QUERY_ENDPOINT")
		}
		return query.NewHTTPClient(query.HTTPOptions{
			Endpoint: env.QueryEndpoint,
			APIKey:   env.QueryAPIKey,
			Timeout:  env.QueryTimeout,
		}), nil
	}
	mem := query.NewMemoryExecutor(query.MemoryOptions{GroupBy: data.GroupBy})
	for name, path := range files {
		ds, err := readDataset(path, data.Sheet)
		if err != nil {
			return nil, err
		}
		mem.Put(name, ds)
	}
	return mem, nil
}
