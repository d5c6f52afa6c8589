package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskq/internal/api"
	"taskq/internal/queueaccess"
)

func newEventCommands(ctx *commandContext) []*cobra.Command {
	var taskID int64
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *int64
			if cmd.Flags().Changed("task") {
				filter = &taskID
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				events, err := q.Events(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.EventListResponse{Events: events})
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(eventHeaders, buildEventRows(events), eventAligns))
				return nil
			})
		},
	}
	eventsCmd.Flags().Int64VarP(&taskID, "task", "t", 0, "Only show events recorded by this task")

	deleteEventCmd := &cobra.Command{
		Use:   "delete-event <id>",
		Short: "Delete a single event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				if err := q.DeleteEvent(cmd.Context(), ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Event %d deleted\n", ids[0])
				return nil
			})
		},
	}

	return []*cobra.Command{eventsCmd, deleteEventCmd}
}
