package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
	"github.com/ersonp/pseudo-core/internal/infrastructure/console"
	"github.com/ersonp/pseudo-core/internal/infrastructure/parsers"
)

type processFlags struct {
	workers        int
	skipValidation bool
	types          []string
	stopOnError    bool
	outputDir      string
	theme          string
}

func newProcessCmd() *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process <file|pattern>...",
		Short: "Pseudonymize documents",
		Long: "Replaces every detected name in the given plain-text files with its consistent pseudonym\n" +
			"and writes <name>_pseudonymized<ext> next to each input (or into --output-dir).",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Parallel workers (disables interactive validation)")
	cmd.Flags().BoolVar(&flags.skipValidation, "skip-validation", false, "Accept every detected span without review")
	cmd.Flags().StringSliceVar(&flags.types, "types", nil, "Entity types to pseudonymize (PERSON,LOCATION,ORG)")
	cmd.Flags().BoolVar(&flags.stopOnError, "stop-on-error", false, "Stop at the first failed document")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for output files")
	cmd.Flags().StringVar(&flags.theme, "theme", "", "Pseudonym theme (neutral, star_wars, lotr)")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string, flags processFlags) error {
	ctx := cmd.Context()

	paths, err := handlers.ExpandPaths(args, parsers.SidecarExtensions...)
	if err != nil {
		return err
	}

	return withDeps(ctx, func(d *Deps) error {
		cfg := d.Config
		types, err := parseTypes(flags.types, cfg.Processing.EntityTypes)
		if err != nil {
			return err
		}

		outputDir := flags.outputDir
		if outputDir == "" && cfg.Processing.OutputDir != "" {
			outputDir = cfg.Processing.OutputDir
			if !filepath.IsAbs(outputDir) {
				outputDir = filepath.Join(d.ws.cwd, outputDir)
			}
		}

		workers := flags.workers
		if workers == 0 {
			workers = cfg.Processing.Workers
		}

		opts := handlers.ProcessOptions{
			SkipValidation: flags.skipValidation || cfg.Processing.SkipValidation,
			EntityTypes:    types,
			StopOnError:    flags.stopOnError,
			OutputDir:      outputDir,
		}

		stack, err := newProcessStack(cfg, flags.theme)
		if err != nil {
			return err
		}

		progress := func(path string) {
			d.Logger.Debug("processing file", "path", path)
		}

		var batch *handlers.BatchResult
		if workers > 1 && len(paths) > 1 {
			if !opts.SkipValidation {
				warn("interactive validation is disabled with %d workers", workers)
			}
			// Workers open their own sessions; the command's store stays idle.
			h := handlers.NewParallelHandler(stack.sessionFactory(d.ws, d.pass), workers, d.Logger)
			batch, err = h.HandleFiles(ctx, paths, opts, progress)
		} else {
			h := stack.handler(d.store, validatorFor(opts), d.ws)
			batch, err = h.HandleFiles(ctx, paths, opts, progress)
		}

		displayBatch(batch)
		if err != nil {
			if handlers.IsCancellation(err) {
				warn("interrupted; %d document(s) not started", batch.Skipped)
			}
			return err
		}
		if batch.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed", batch.Failed, len(paths))
		}
		return nil
	})
}

// validatorFor prompts on the terminal, and accepts everything when stdin
// is not interactive.
func validatorFor(opts handlers.ProcessOptions) ports.Validator {
	if opts.SkipValidation {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		warn("stdin is not a terminal; accepting all detected spans")
		return console.AutoAccept{}
	}
	return console.NewValidator(os.Stdin, os.Stdout)
}

func parseTypes(flagTypes, configTypes []string) ([]entities.EntityType, error) {
	names := flagTypes
	if len(names) == 0 {
		names = configTypes
	}
	if len(names) == 0 {
		return entities.DefaultTypes(), nil
	}
	types := make([]entities.EntityType, 0, len(names))
	for _, n := range names {
		t, err := entities.ParseEntityType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func displayBatch(batch *handlers.BatchResult) {
	if batch == nil {
		return
	}
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	notice := color.New(color.FgYellow).SprintFunc()

	for _, fr := range batch.Files {
		if fr == nil {
			continue
		}
		if fr.Err != nil {
			fmt.Printf("%s %s: %v\n", bad("✗"), fr.Path, fr.Err)
			continue
		}
		r := fr.Result
		fmt.Printf("%s %s -> %s (%d spans, %d new, %d reused, %d ambiguous)\n",
			ok("✓"), fr.Path, fr.OutputPath, r.EntitiesDetected, r.EntitiesNew, r.EntitiesReused, r.AmbiguousEntities)
		if r.AlreadyProcessed {
			fmt.Printf("  %s\n", notice("content unchanged since last run; no new mappings expected"))
		}
	}
	fmt.Printf("\n%d succeeded, %d failed, %d skipped in %s\n",
		batch.Succeeded, batch.Failed, batch.Skipped, batch.Duration.Round(time.Millisecond))
}
