package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskq/internal/api"
	"taskq/internal/queueaccess"
)

func newTaskCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newEnqueueCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newDeleteCommand(ctx),
		newRetryCommand(ctx),
		newActiveCommand(ctx),
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var lane string
	var priority int
	var category int64
	var retryLimit int
	var params string
	var pairs []string

	cmd := &cobra.Command{
		Use:   "enqueue <kind>",
		Short: "Queue a task of a registered kind",
		Example: `  taskq enqueue echo --param message=hello
  taskq enqueue http_lookup --lane small_jobs --params '{"url":"https://example.com"}'
  taskq enqueue sleep --param seconds=30 --priority 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildParams(params, pairs)
			if err != nil {
				return err
			}
			req := api.EnqueueRequest{
				Kind:     args[0],
				Lane:     lane,
				Priority: priority,
				Category: category,
				Params:   body,
			}
			if cmd.Flags().Changed("retry-limit") {
				req.RetryLimit = &retryLimit
			}

			return ctx.withQueue(func(q queueaccess.Access) error {
				task, err := q.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued task %d on lane %s: %s\n", task.ID, task.Lane, task.Description)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&lane, "lane", "l", "", "Lane to queue on (defaults to the configured default lane)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Priority; higher runs first")
	cmd.Flags().Int64Var(&category, "category", 0, "Category tag used for active-task checks")
	cmd.Flags().IntVar(&retryLimit, "retry-limit", 0, "Retries allowed before the task is failed")
	cmd.Flags().StringVar(&params, "params", "", "Task parameters as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "param", nil, "Task parameter as key=value (repeatable)")
	return cmd
}

// buildParams merges a JSON object with key=value overrides. Values that
// parse as JSON keep their type; anything else is sent as a string.
func buildParams(raw string, pairs []string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		if json.Valid([]byte(value)) {
			fields[key] = json.RawMessage(value)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = encoded
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var category int64
	var lane string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"tasks", "ls"},
		Short:   "List tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := api.TaskQuery{Statuses: statuses, Lane: lane, Limit: limit}
			if cmd.Flags().Changed("category") {
				query.Category = &category
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				tasks, err := q.List(cmd.Context(), query)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.TaskListResponse{Tasks: tasks})
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(taskListHeaders, buildTaskListRows(tasks, shouldColorize(cmd.OutOrStdout())), taskListAligns))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().Int64Var(&category, "category", 0, "Filter by category")
	cmd.Flags().StringVarP(&lane, "lane", "l", "", "Filter by lane")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tasks to show")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]
			return ctx.withQueue(func(q queueaccess.Access) error {
				task, err := q.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				events, err := q.Events(cmd.Context(), &id)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, struct {
						Task   *api.Task   `json:"task"`
						Events []api.Event `json:"events"`
					}{task, events})
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderDetails(taskDetailPairs(*task)))
				if len(events) > 0 {
					fmt.Fprintln(out)
					fmt.Fprint(out, renderTable(eventHeaders, buildEventRows(events), eventAligns))
				}
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete tasks; running tasks are aborted first",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Delete(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.DeleteTaskDeleted:
						fmt.Fprintf(out, "Task %d deleted (%d events removed)\n", item.ID, item.EventsRemoved)
					case api.DeleteTaskDeferred:
						fmt.Fprintf(out, "Task %d is running; abort requested\n", item.ID)
					case api.DeleteTaskNotFound:
						fmt.Fprintf(out, "Task %d not found\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Requeue failed tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.RetryTaskRetried:
						fmt.Fprintf(out, "Task %d requeued\n", item.ID)
					case api.RetryTaskNotFailed:
						fmt.Fprintf(out, "Task %d is %s, not failed\n", item.ID, strings.ToLower(statusLabel(item.PriorStatus)))
					case api.RetryTaskNotFound:
						fmt.Fprintf(out, "Task %d not found\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

func newActiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "active <category>",
		Short: "Report whether a category has unfinished tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || category < 0 {
				return fmt.Errorf("invalid category %q", args[0])
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				active, err := q.Active(cmd.Context(), category)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"category": category, "active": active})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Category %d active: %s\n", category, yesNo(active))
				return nil
			})
		},
	}
}
