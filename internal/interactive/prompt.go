package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/swfz/gh-repos/internal/formatter"
	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/parser"
	"github.com/swfz/gh-repos/internal/store"
)

const promptHelp = `Commands:
  list                  show loaded repositories
  more                  load the next page
  sort <field[:order]>  sort by stars, name or updated
  order <asc|desc>      change sort direction
  rename <id> <name>    rename a repository locally
  delete <id>           remove a repository locally
  reset                 restore the default sort and reload
  help                  show this help
  quit                  exit`

// errQuit ends the prompt loop
var errQuit = errors.New("quit")

// Runner is the line-oriented alternative to the TUI
type Runner struct {
	store   RepoStore
	scanner *bufio.Scanner
	out     io.Writer
	logger  *slog.Logger
}

// NewRunner creates a new prompt runner reading commands from in
func NewRunner(s RepoStore, in io.Reader, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		store:   s,
		scanner: bufio.NewScanner(in),
		out:     out,
		logger:  logger,
	}
}

// Run reads commands until quit or end of input
func (r *Runner) Run(ctx context.Context) error {
	if r.store.NeedsInitialFetch() {
		r.fetch(ctx)
	}
	r.printList()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.out, "\n> ")

		input, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if err := r.execute(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(r.out, "Exiting.")
				return nil
			}
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

// readLine reads a line from the input
func (r *Runner) readLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// execute runs a single command line
func (r *Runner) execute(ctx context.Context, input string) error {
	cmd, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "":
		return nil

	case "q", "quit", "exit":
		return errQuit

	case "h", "help", "?":
		fmt.Fprintln(r.out, promptHelp)

	case "l", "ls", "list":
		r.printList()

	case "m", "more":
		r.fetch(ctx)
		r.printSummary()

	case "sort":
		if args == "" {
			return errors.New("usage: sort <field[:order]>")
		}
		sort, err := parser.ParseSort(args, r.store.State().Sort)
		if err != nil {
			return err
		}
		r.report("sort", r.store.SetSort(ctx, sort))
		r.printList()

	case "order":
		order, err := parser.ParseSortOrder(args)
		if err != nil {
			return err
		}
		r.report("sort", r.store.SetSortOrder(ctx, order))
		r.printList()

	case "rename", "edit":
		idArg, name, _ := strings.Cut(args, " ")
		id, err := parseID(idArg)
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("usage: rename <id> <name>")
		}
		if !r.store.EditRepo(id, name) {
			fmt.Fprintf(r.out, "No repository with id %d.\n", id)
			return nil
		}
		fmt.Fprintf(r.out, "✅ Renamed %d to %s\n", id, name)

	case "delete", "rm":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		r.delete(id)

	case "reset":
		r.report("reset", r.store.ResetToDefault(ctx))
		r.printList()

	default:
		return fmt.Errorf("unknown command: %s (type 'help')", cmd)
	}

	return nil
}

// delete asks for confirmation before removing id
func (r *Runner) delete(id int64) {
	repos := r.store.State().Repos
	idx := slices.IndexFunc(repos, func(repo models.Repository) bool { return repo.ID == id })
	if idx == -1 {
		fmt.Fprintf(r.out, "No repository with id %d.\n", id)
		return
	}

	if !r.confirm(fmt.Sprintf("Delete %s (%d)?", repos[idx].Name, id)) {
		fmt.Fprintln(r.out, "Delete cancelled.")
		return
	}

	removed := r.store.DeleteRepo(id)
	fmt.Fprintf(r.out, "✅ Deleted %d record(s)\n", removed)
}

// confirm asks a y/N question
func (r *Runner) confirm(question string) bool {
	fmt.Fprintf(r.out, "%s (y/N): ", question)

	input, err := r.readLine()
	if err != nil {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}

func (r *Runner) fetch(ctx context.Context) {
	fmt.Fprintln(r.out, "Loading repositories...")
	r.report("fetch", r.store.FetchNextPage(ctx))
}

// report logs a failed store operation; the user-facing message is in the store state
func (r *Runner) report(op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrFetchInFlight) || errors.Is(err, store.ErrStaleFetch) {
		r.logger.Debug("store operation superseded", "op", op, "error", err)
		return
	}
	r.logger.Error("store operation failed", "op", op, "error", err)
}

func (r *Runner) printList() {
	state := r.store.State()
	if len(state.Repos) == 0 {
		fmt.Fprintln(r.out, "No repositories loaded.")
	} else if err := formatter.RenderTable(r.out, state.Repos); err != nil {
		r.logger.Error("failed to render table", "error", err)
	}
	r.printSummary()
}

func (r *Runner) printSummary() {
	state := r.store.State()
	if state.Error != "" {
		fmt.Fprintf(r.out, "❌ %s\n", state.Error)
	}
	fmt.Fprintf(r.out, "Total: %d repositories · sort %s (%s) · next page %d\n",
		len(state.Repos), state.Sort.Field, state.Sort.Order.DisplayName(), state.Page)
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing repository id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid repository id: %s", s)
	}
	return id, nil
}
