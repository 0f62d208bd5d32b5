package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ettle/strcase"
	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/rs/zerolog"
)

// Extension is appended to every exported file.
const Extension = ".xlsx"

const filenameStamp = "2006-01-02 3 04pm"

// Options configures an Exporter.
type Options struct {
	Dir    string
	Sheet  string
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Exporter writes pivot grids to .xlsx files in a directory. It satisfies
// pivot.Exporter.
type Exporter struct {
	dir    string
	sheet  string
	logger zerolog.Logger
	now    func() time.Time
}

var _ pivot.Exporter = (*Exporter)(nil)

// NewExporter builds an exporter. Files land in the working directory unless
// Dir is set.
func NewExporter(opts Options) *Exporter {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &Exporter{
		dir:    opts.Dir,
		sheet:  opts.Sheet,
		logger: logger.With().Str("component", "pivot.xlsx").Logger(),
		now:    opts.Now,
	}
}

// Export serializes req.Grid and returns the written path. The workbook is
// rendered to memory and renamed into place, so a failure never leaves a
// partial file behind.
func (e *Exporter) Export(ctx context.Context, req pivot.ExportRequest) (string, error) {
	at := req.At
	if at.IsZero() {
		at = e.now()
	}
	name := req.Filename
	if name == "" {
		name = Filename(req.Title, at)
	} else {
		name = filepath.Base(name)
		if !strings.EqualFold(filepath.Ext(name), Extension) {
			name += Extension
		}
	}
	path := filepath.Join(e.dir, name)
	log := e.logger.With().Str("widget", req.WidgetID).Str("path", path).Logger()

	if err := e.write(ctx, req.Grid, path); err != nil {
		log.Error().Err(err).Msg("pivot export failed")
		return "", err
	}
	log.Info().Int("rows", len(req.Grid.Body)).Msg("pivot exported")
	return path, nil
}

func (e *Exporter) write(ctx context.Context, grid *pivot.Grid, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := Build(grid, e.sheet)
	if err != nil {
		return err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx: encode workbook: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pivot-*"+Extension)
	if err != nil {
		return fmt.Errorf("xlsx: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("xlsx: close workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("xlsx: move workbook into place: %w", err)
	}
	return nil
}

// Filename derives the export name from the widget title and time, e.g.
// "sales-by-region-2024-03-09 2 05pm.xlsx". Titles without usable characters
// fall back to "pivot".
func Filename(title string, at time.Time) string {
	base := sanitize(strcase.ToKebab(title))
	if base == "" {
		base = "pivot"
	}
	return base + "-" + at.Format(filenameStamp) + Extension
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(s))
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
