package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/xlsx"
)

var exploreCompleter = readline.NewPrefixCompleter(
	readline.PcItem("show"),
	readline.PcItem("json"),
	readline.PcItem("toggle"),
	readline.PcItem("col"),
	readline.PcItem("collapse-all"),
	readline.PcItem("expand-all"),
	readline.PcItem("sort",
		readline.PcItem("level"),
		readline.PcItem("total"),
		readline.PcItem("col"),
	),
	readline.PcItem("export"),
	readline.PcItem("reload"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

const exploreHelp = `show                 print the table
json                 print the grid as JSON
toggle <key>         collapse or expand a row group (parts joined by "/")
col <key>            collapse or expand a column group
collapse-all         collapse every row group
expand-all           expand everything
sort level <n>       cycle the sort of row level n (0 based)
sort total           cycle the sort by the grand total column
sort col <key>       cycle the sort by a column group
export [name]        write an Excel workbook
reload               fetch the rows again
exit                 leave the session`

type exploreCmd struct {
	Config  string    `arg:"" type:"existingfile" help:"Pivot document (.yaml or .json)."`
	History string    `type:"path" help:"Readline history file (defaults to ~/.pivotctl_history)."`
	Data    dataFlags `embed:""`
}

func (cmd *exploreCmd) Run(ctx context.Context, rt *runtime) error {
	sched := &settleScheduler{}
	t, err := openTable(ctx, cmd.Config, cmd.Data, tableOptions{Env: rt.Env, Logger: rt.Logger, Scheduler: sched})
	if err != nil {
		return err
	}
	history := cmd.History
	if history == "" {
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".pivotctl_history")
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          colorInfo("pivot> "),
		HistoryFile:     history,
		AutoComplete:    exploreCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("pivotctl: readline: %w", err)
	}
	defer rl.Close()

	s := newSession(t, sched, xlsx.NewExporter(xlsx.Options{Dir: rt.Env.ExportDir, Logger: &rt.Logger}), rl.Stdout())
	if err := s.exec(ctx, "show"); err != nil {
		return err
	}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintln(s.out, colorErr("✗ ")+err.Error())
		}
	}
}

var errExit = errors.New("exit")

// session applies explore commands to one widget.
type session struct {
	table    *table
	sched    *settleScheduler
	out      io.Writer
	expand   *commands.ExpandAllCommand
	collapse *commands.CollapseAllCommand
	toggle   *commands.ToggleCommand
	sort     *commands.SortCommand
	export   *commands.ExportCommand
}

func newSession(t *table, sched *settleScheduler, exporter pivot.Exporter, out io.Writer) *session {
	return &session{
		table:    t,
		sched:    sched,
		out:      out,
		expand:   commands.NewExpandAllCommand(t.registry, nil),
		collapse: commands.NewCollapseAllCommand(t.registry, nil),
		toggle:   commands.NewToggleCommand(t.registry, nil),
		sort:     commands.NewSortCommand(t.registry, nil),
		export:   commands.NewExportCommand(t.registry, exporter, nil),
	}
}

func (s *session) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	id := s.table.id
	verb, args := strings.ToLower(fields[0]), fields[1:]
	var err error
	switch verb {
	case "show":
		return renderTo(ctx, s.out, s.table, "table", true)
	case "json":
		return renderTo(ctx, s.out, s.table, "json", false)
	case "help":
		fmt.Fprintln(s.out, exploreHelp)
		return nil
	case "exit", "quit":
		return errExit
	case "collapse-all":
		err = s.collapse.Execute(ctx, commands.WidgetInput{WidgetID: id})
	case "expand-all":
		err = s.expand.Execute(ctx, commands.WidgetInput{WidgetID: id})
	case "toggle", "col":
		if len(args) == 0 {
			return fmt.Errorf("%s needs a group key", verb)
		}
		axis := pivot.AxisRows
		if verb == "col" {
			axis = pivot.AxisColumns
		}
		err = s.toggle.Execute(ctx, commands.ToggleInput{WidgetID: id, Axis: axis, Key: strings.Join(args, " ")})
	case "sort":
		err = s.sortBy(ctx, args)
	case "export":
		var path string
		in := commands.ExportInput{WidgetID: id, Path: &path}
		if len(args) > 0 {
			in.Filename = args[0]
		}
		if err := s.export.Execute(ctx, in); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s Exported to %s\n", colorOK("✓"), path)
		return nil
	case "reload":
		err = s.table.reload(ctx)
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	if err != nil {
		return err
	}
	s.sched.Settle()
	return renderTo(ctx, s.out, s.table, "table", true)
}

func (s *session) sortBy(ctx context.Context, args []string) error {
	in := commands.SortInput{WidgetID: s.table.id}
	if len(args) == 0 {
		return errors.New("sort needs level <n>, total or col <key>")
	}
	switch args[0] {
	case "level":
		if len(args) < 2 {
			return errors.New("sort level needs a level number")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("sort level: %w", err)
		}
		in.Level = &n
	case "total":
		in.Column = pivot.TotalKey
	case "col":
		if len(args) < 2 {
			return errors.New("sort col needs a column key")
		}
		in.Column = strings.Join(args[1:], " ")
	default:
		return fmt.Errorf("unknown sort target %q", args[0])
	}
	return s.sort.Execute(ctx, in)
}
