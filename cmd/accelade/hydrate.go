package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/accelade"
	"github.com/pthm/accelade/lib/dom"
	"github.com/pthm/accelade/lib/logging"
)

type hydrateOptions struct {
	sets      []string
	component string
}

func newHydrateCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &hydrateOptions{}

	cmd := &cobra.Command{
		Use:   "hydrate <file.html>",
		Short: "Hydrate a page and print the rendered HTML",
		Long: `Hydrate every component root in an HTML file, apply optional state
changes and print the resulting document.

Values given with --set are parsed as JSON and fall back to plain strings:

  accelade hydrate page.html --component counter --set count=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHydrate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "state change key=value (repeatable)")
	cmd.Flags().StringVar(&opts.component, "component", "", "component id the changes apply to")

	return cmd
}

func runHydrate(rootOpts *rootOptions, opts *hydrateOptions, path string, cmd *cobra.Command) error {
	updates, err := parseSets(opts.sets)
	if err != nil {
		return err
	}
	if len(updates) > 0 && opts.component == "" {
		return errors.New("--set requires --component")
	}

	runtimeOpts, err := configOptions(rootOpts)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	rt, err := accelade.New(doc, runtimeOpts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Hydrate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	if len(updates) > 0 {
		inst, ok := rt.Get(opts.component)
		if !ok {
			return fmt.Errorf("component %q not found", opts.component)
		}
		if err := inst.SetMany(updates); err != nil {
			return err
		}
	}

	_, err = io.WriteString(cmd.OutOrStdout(), doc.String())
	return err
}

func configOptions(rootOpts *rootOptions) ([]accelade.Option, error) {
	opts := []accelade.Option{accelade.WithLogger(logging.Logger())}
	if rootOpts.config == "" {
		return opts, nil
	}
	cfg, err := accelade.LoadConfig(rootOpts.config)
	if err != nil {
		return nil, err
	}
	return append(opts, accelade.WithConfig(cfg)), nil
}

// parseSets turns key=value pairs into a state update.
func parseSets(sets []string) (map[string]any, error) {
	updates := make(map[string]any, len(sets))
	for _, s := range sets {
		key, raw, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		updates[key] = v
	}
	return updates, nil
}
