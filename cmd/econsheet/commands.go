package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dlovans/econsheet/internal/config"
	"github.com/dlovans/econsheet/internal/store"
	"github.com/dlovans/econsheet/pkg/document"
	"github.com/dlovans/econsheet/pkg/econsheet"
	"github.com/dlovans/econsheet/pkg/lint"
)

func (a *app) defaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults <kind>",
		Short: "Print the default state of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.loadSchema(args[0])
			if err != nil {
				return err
			}
			opts, err := a.engineOptions()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), econsheet.GenerateDefaults(schema.Fields, opts...))
		},
	}
}

func (a *app) gridCmd() *cobra.Command {
	var statePath, format string
	cmd := &cobra.Command{
		Use:   "grid <kind>",
		Short: "Render state as a cell grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.openEditor(cmd.InOrStdin(), args[0], statePath)
			if err != nil {
				return err
			}
			grid := e.Grid()
			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), grid)
			case "table":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), renderGrid(grid))
				return err
			default:
				return fmt.Errorf("unknown format %q (want json or table)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "state file (JSON, - for stdin); defaults when omitted")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var statePath string
	cmd := &cobra.Command{
		Use:   "validate <kind>",
		Short: "Check that state is complete and in range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.openEditor(cmd.InOrStdin(), args[0], statePath)
			if err != nil {
				return err
			}
			issues := e.Issues()
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintln(out, "✓ State is valid")
				return nil
			}
			for _, is := range issues {
				fmt.Fprintf(out, "✗ %s\n", is)
			}
			return fmt.Errorf("%d invalid field(s)", len(issues))
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "state file (JSON, - for stdin)")
	return cmd
}

func (a *app) compileCmd() *cobra.Command {
	var (
		statePath string
		keys      []string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "compile <kind>",
		Short: "Compile state into the econ_function payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, schema, err := a.openEditor(cmd.InOrStdin(), args[0], statePath)
			if err != nil {
				return err
			}
			if !force && !e.Valid() {
				return fmt.Errorf("state is invalid (run validate for details, or pass --force)")
			}
			payload := econsheet.Compile(schema.Fields, e.State(), econsheet.CompileOptions{
				Keys:   keys,
				Ignore: a.cfg.Ignore,
			})
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "state file (JSON, - for stdin)")
	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, "top-level keys to emit (all when omitted)")
	cmd.Flags().BoolVar(&force, "force", false, "compile even when the state is invalid")
	return cmd
}

func (a *app) lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [schema-file]",
		Short: "Statically check a field schema document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *lint.Result
				err    error
			)
			if len(args) == 1 {
				result, err = lint.RunFile(args[0])
			} else {
				var input []byte
				input, err = io.ReadAll(cmd.InOrStdin())
				if err == nil {
					result, err = lint.Run(input)
				}
			}
			if err != nil {
				return fmt.Errorf("lint error: %w", err)
			}
			printLint(cmd.OutOrStdout(), result)
			if !result.Valid {
				return errors.New("schema has errors")
			}
			return nil
		},
	}
}

func printLint(out io.Writer, result *lint.Result) {
	if len(result.Issues) == 0 {
		fmt.Fprintln(out, "✓ No issues found")
		return
	}
	for _, issue := range result.Issues {
		icon := "⚠"
		if issue.Severity == "error" {
			icon = "✗"
		}
		location := ""
		if issue.Field != "" {
			location = fmt.Sprintf(" [field: %s]", issue.Field)
		}
		if issue.Rule != "" {
			location += fmt.Sprintf(" [rule: %s]", issue.Rule)
		}
		fmt.Fprintf(out, "%s %s%s: %s\n", icon, issue.Severity, location, issue.Message)
	}
}

func (a *app) editCmd() *cobra.Command {
	var (
		statePath  string
		sets       []string
		addRows    []string
		removeRows []string
	)
	cmd := &cobra.Command{
		Use:   "edit <kind>",
		Short: "Apply cell edits to state and print the result",
		Long: `Apply edits the way a grid host would: each --set path=value is dispatched
through the cell at that key path, so selections reset dependent values and
range rows stay contiguous.

Examples:
  econsheet edit pricing -s state.json --set model_type=schedule
  econsheet edit pricing -s state.json --add-row schedule --set schedule.rows.1.price=20
  econsheet edit pricing -s state.json --remove-row schedule:0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.openEditor(cmd.InOrStdin(), args[0], statePath)
			if err != nil {
				return err
			}
			for _, p := range addRows {
				if err := e.AddRow(econsheet.ParsePath(p)); err != nil {
					return err
				}
			}
			for _, spec := range removeRows {
				p, i, err := parseRowRef(spec)
				if err != nil {
					return err
				}
				if err := e.RemoveRow(p, i); err != nil {
					return err
				}
			}
			for _, s := range sets {
				key, value, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("--set %q: want path=value", s)
				}
				if err := e.Edit(econsheet.ParsePath(key), value); err != nil {
					return err
				}
				a.logger.Debug("edit applied", zap.String("path", key), zap.String("value", value))
			}
			for _, is := range e.Issues() {
				a.logger.Info("invalid field", zap.Stringer("path", is.Path), zap.String("message", is.Message))
			}
			return writeJSON(cmd.OutOrStdout(), e.State())
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "state file (JSON, - for stdin); defaults when omitted")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "edit path=value (repeatable)")
	cmd.Flags().StringArrayVar(&addRows, "add-row", nil, "append a row to the table at path (repeatable)")
	cmd.Flags().StringArrayVar(&removeRows, "remove-row", nil, "remove row path:index (repeatable)")
	return cmd
}

func parseRowRef(spec string) (econsheet.Path, int, error) {
	p, idx, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, 0, fmt.Errorf("--remove-row %q: want path:index", spec)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return nil, 0, fmt.Errorf("--remove-row %q: %w", spec, err)
	}
	return econsheet.ParsePath(p), i, nil
}

func (a *app) saveCmd() *cobra.Command {
	var statePath, name, id string
	cmd := &cobra.Command{
		Use:   "save <kind>",
		Short: "Validate, compile and store a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.loadSchema(args[0])
			if err != nil {
				return err
			}
			state, err := readState(cmd.InOrStdin(), statePath)
			if err != nil {
				return err
			}
			opts, err := a.engineOptions()
			if err != nil {
				return err
			}
			doc := &document.Document{ID: id, Kind: schema.Kind, Name: name, Options: state}
			if err := document.Prepare(doc, schema, document.PrepareOptions{Ignore: a.cfg.Ignore, Engine: opts}); err != nil {
				var invalid *document.InvalidError
				if errors.As(err, &invalid) {
					for _, is := range invalid.Issues {
						fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", is)
					}
				}
				return err
			}
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				if err := s.Save(cmd.Context(), doc); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "state file (JSON, - for stdin); defaults when omitted")
	cmd.Flags().StringVarP(&name, "name", "n", "", "document name")
	cmd.Flags().StringVar(&id, "id", "", "replace the document with this id")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var optionsOnly bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				doc, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if doc.Stale() {
					a.logger.Warn("econ_function does not match its fingerprint", zap.String("id", doc.ID))
				}
				if optionsOnly {
					return writeJSON(cmd.OutOrStdout(), doc.Options)
				}
				data, err := doc.Encode()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&optionsOnly, "options", false, "print only the state, ready for --state")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				entries, err := s.List(cmd.Context(), kind)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents")
					return nil
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only documents of this kind")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				return s.Delete(cmd.Context(), args[0])
			})
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil {
				return fmt.Errorf("%s already exists", a.configPath)
			}
			if err := os.WriteFile(a.configPath, []byte(config.DefaultYAML()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", a.configPath)
			return nil
		},
	}
}

// loadSchema resolves kind to a schema file: an existing path is read as is,
// anything else is looked up in the schema directory.
func (a *app) loadSchema(kind string) (*econsheet.Schema, error) {
	path := kind
	if st, err := os.Stat(kind); err != nil || st.IsDir() || filepath.Ext(kind) == "" {
		path, err = a.cfg.SchemaPath(kind)
		if err != nil {
			return nil, err
		}
	}
	schema, err := econsheet.LoadSchema(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("schema loaded",
		zap.String("kind", schema.Kind),
		zap.String("version", schema.Version),
		zap.String("path", path),
		zap.Int("fields", len(schema.Fields)))
	return schema, nil
}

func (a *app) openEditor(stdin io.Reader, kind, statePath string) (*econsheet.Editor, *econsheet.Schema, error) {
	schema, err := a.loadSchema(kind)
	if err != nil {
		return nil, nil, err
	}
	state, err := readState(stdin, statePath)
	if err != nil {
		return nil, nil, err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, nil, err
	}
	return econsheet.NewEditor(schema.Fields, state, opts...), schema, nil
}

func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := store.Open(ctx, a.cfg.StoreFile(), a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

// readState decodes a JSON state file. An empty path means no state; "-"
// reads stdin.
func readState(stdin io.Reader, path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state map[string]any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	return state, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
