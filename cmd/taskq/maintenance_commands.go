package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskq/internal/queueaccess"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge tasks and events past the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks and %d events\n", result.TasksRemoved, result.EventsRemoved)
				return nil
			})
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health and task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				db, err := q.DatabaseHealth(cmd.Context())
				if err != nil && db.Error == "" {
					return err
				}
				counts, err := q.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"database": db, "queue": counts})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", db.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", db.SchemaVersion)
				if len(db.MissingTables) > 0 {
					fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(db.MissingTables, ", "))
				} else {
					fmt.Fprintln(out, "Missing tables: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Total: %d\nPending: %d\nRunning: %d\nFailed: %d\nComplete: %d\nEvents: %d\n",
					counts.Total,
					counts.Pending,
					counts.Running,
					counts.Failed,
					counts.Complete,
					counts.Events,
				)
				return nil
			})
		},
	}
}
