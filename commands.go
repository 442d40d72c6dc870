package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rowfilter/config"
	"rowfilter/engine"
	"rowfilter/filter"
	"rowfilter/parser"
	"rowfilter/source"
)

func (o *globalOptions) mode() parser.Mode {
	if o.lenient {
		return parser.ModeLenient
	}
	return parser.ModeStrict
}

func newMatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match RULE [VALUE...]",
		Short: "Print the values that match RULE, reading stdin when no values are given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parser.ParseWithMode(args[0], opts.mode())
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(args) > 1 {
				for _, v := range args[1:] {
					if f.Match(v) {
						fmt.Fprintln(out, v)
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if v := scanner.Text(); f.Match(v) {
					fmt.Fprintln(out, v)
				}
			}
			return scanner.Err()
		},
	}
}

func newExplainCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain RULE",
		Short: "Print the filter tree RULE parses into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parser.ParseWithMode(args[0], opts.mode())
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, f.String())
			printTree(out, f, 0)
			return nil
		},
	}
}

func printTree(w io.Writer, f filter.Filter, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := f.(type) {
	case *filter.Combinator:
		fmt.Fprintf(w, "%s%s\n", indent, n.Op())
		printTree(w, n.Left(), depth+1)
		printTree(w, n.Right(), depth+1)
	case *filter.Pattern:
		fmt.Fprintf(w, "%s%s (%s)\n", indent, n.String(), n.Kind())
	default:
		fmt.Fprintf(w, "%s%s\n", indent, n.String())
	}
}

type queryOptions struct {
	preset string
	table  string
	column string
	rule   string
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the rows of a configured table that match a rule or preset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.preset == "" && q.table == "" {
				return errors.New("either --preset or --table is required")
			}

			ctx := cmd.Context()
			_, eng, _, err := loadEngine(ctx, opts)
			if err != nil {
				return err
			}

			res, err := q.run(ctx, eng)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&q.preset, "preset", "", "Name of a preset from the config file")
	cmd.Flags().StringVar(&q.table, "table", "", "Table to query")
	cmd.Flags().StringVar(&q.column, "column", "", "Column to test; empty tests every column")
	cmd.Flags().StringVar(&q.rule, "rule", "", "Filter rule")
	cmd.MarkFlagsMutuallyExclusive("preset", "table")
	return cmd
}

func (q *queryOptions) run(ctx context.Context, eng *engine.Engine) (*engine.Result, error) {
	if q.preset != "" {
		return eng.SelectPreset(ctx, q.preset)
	}
	return eng.Select(ctx, engine.Query{Table: q.table, Column: q.column, Rule: q.rule})
}

// loadEngine reads the config, builds the engine and loads every table.
func loadEngine(ctx context.Context, opts *globalOptions) (*config.Manager, *engine.Engine, *source.Loader, error) {
	mgr := config.NewManager(opts.configPath)
	if err := mgr.Load(); err != nil {
		return nil, nil, nil, err
	}
	log.Printf("Configuration loaded successfully from %s", opts.configPath)

	cfg := mgr.Get()
	if opts.logLevel == "" {
		if err := setLogLevel(cfg.Log.Level); err != nil {
			log.Warnf("Ignoring log level from config: %v", err)
		}
	}
	if opts.lenient {
		cfg.Parser.Lenient = true
	}

	eng := engine.NewEngine(cfg)
	mgr.LoadCallback = func(c *config.Config) error {
		if opts.lenient {
			c.Parser.Lenient = true
		}
		return eng.UpdateConfig(c)
	}

	loader := source.NewLoader(opts.dataDir)
	setCacheAge(loader, cfg)

	if err := eng.ReloadTables(ctx, loader); err != nil {
		log.Warnf("Some tables failed to load: %v", err)
	}
	return mgr, eng, loader, nil
}

// setCacheAge makes every updater tick find the URL cache expired, while a
// restart within the interval still reuses it.
func setCacheAge(loader *source.Loader, cfg *config.Config) {
	loader.MaxAge = cfg.URLInterval / 2
}

func writeResult(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(res.Rows); err != nil {
		return err
	}
	log.Debugf("%d rows of '%s' matched %s", len(res.Rows), res.Table, res.Filter)
	return nil
}
