package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

type auditFlags struct {
	opType  string
	success string
	since   string
	until   string
	limit   int
	format  string
	output  string
}

func newAuditCmd() *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query or export the operation log",
		Long: "Lists PROCESS, BATCH, VALIDATE and ERASURE operations, newest first.\n" +
			"With --format the log is exported as a JSON manifest or CSV.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.opType, "type", "t", "", "Operation type (PROCESS, BATCH, VALIDATE, ERASURE)")
	cmd.Flags().StringVar(&flags.success, "success", "", "Filter by outcome (true or false)")
	cmd.Flags().StringVar(&flags.since, "since", "", "Only operations at or after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&flags.until, "until", "", "Only operations at or before this date")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultAuditLimit, "Maximum number of operations (0 for all)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Export format (json, csv)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Export file (default: stdout)")

	return cmd
}

func runAudit(cmd *cobra.Command, flags auditFlags) error {
	filter, err := buildOperationFilter(flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withDeps(ctx, func(d *Deps) error {
		if flags.format == "" && flags.output == "" {
			ops, err := d.Audit.HandleQuery(ctx, filter)
			if err != nil {
				return err
			}
			displayOperations(ops)
			return nil
		}
		return exportAudit(ctx, d, flags, filter)
	})
}

func exportAudit(ctx context.Context, d *Deps, flags auditFlags, filter entities.OperationFilter) (err error) {
	format := flags.format
	if format == "" {
		format = handlers.FormatJSON
	}

	var w io.Writer = os.Stdout
	if flags.output != "" {
		f, err := os.OpenFile(flags.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	}

	n, err := d.Audit.HandleExport(ctx, w, format, filter)
	if err != nil {
		return err
	}
	if flags.output != "" {
		fmt.Fprintf(os.Stderr, "Exported %d operations to %s\n", n, flags.output)
	}
	return nil
}

func buildOperationFilter(flags auditFlags) (entities.OperationFilter, error) {
	filter := entities.OperationFilter{Limit: flags.limit}

	if flags.opType != "" {
		t, ok := entities.ParseOperationType(strings.ToUpper(flags.opType))
		if !ok {
			return filter, fmt.Errorf("invalid operation type %q", flags.opType)
		}
		filter.Type = t
	}

	if flags.success != "" {
		b, err := strconv.ParseBool(flags.success)
		if err != nil {
			return filter, fmt.Errorf("invalid --success value %q", flags.success)
		}
		filter.Success = &b
	}

	var err error
	if filter.From, err = parseDate(flags.since, false); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(flags.until, true); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseDate accepts the layouts in dateLayouts. A bare date used as an
// upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if endOfDay && layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC3339)", s)
}

func displayOperations(ops []*entities.Operation) {
	if len(ops) == 0 {
		fmt.Println("No operations found.")
		return
	}
	for _, op := range ops {
		status := "ok"
		if !op.Success {
			status = "FAILED"
		}
		fmt.Printf("%s  %-8s %-6s entities=%d files=%d  %s\n",
			op.Timestamp.Format(time.RFC3339), op.OperationType, status, op.EntityCount, len(op.Files), op.ID)
		if op.ErrorMessage != "" {
			fmt.Printf("    error: %s\n", op.ErrorMessage)
		}
		if len(op.Files) > 0 && len(op.Files) <= 3 {
			fmt.Printf("    %s\n", strings.Join(op.Files, ", "))
		}
	}
}
