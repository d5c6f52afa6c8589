package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"taskq/internal/api"
	"taskq/internal/queue"
)

var titleCaser = cases.Title(language.English)

func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func displayTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format(time.DateTime)
}

func buildQueueStatusRows(stats map[string]int, colorize bool) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count := stats[string(status)]
		if count == 0 {
			continue
		}
		label := paint(statusLabel(string(status)), taskStatusKind(string(status)), colorize)
		rows = append(rows, []string{label, strconv.Itoa(count)})
	}
	return rows
}

func buildTaskListRows(tasks []api.Task, colorize bool) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Lane,
			t.Kind,
			t.Description,
			paint(statusLabel(t.Status), taskStatusKind(t.Status), colorize),
			fmt.Sprintf("%d/%d", t.RetryCount, t.RetryLimit),
			displayTime(t.UpdatedAt),
		})
	}
	return rows
}

var taskListHeaders = []string{"ID", "Lane", "Kind", "Description", "Status", "Retries", "Updated"}

var taskListAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}

func taskDetailPairs(t api.Task) [][2]string {
	pairs := [][2]string{
		{"ID", strconv.FormatInt(t.ID, 10)},
		{"Kind", t.Kind},
		{"Description", t.Description},
		{"Lane", t.Lane},
		{"Status", statusLabel(t.Status)},
		{"Priority", strconv.Itoa(t.Priority)},
		{"Category", strconv.FormatInt(t.Category, 10)},
		{"Retries", fmt.Sprintf("%d of %d", t.RetryCount, t.RetryLimit)},
		{"Queued", displayTime(t.QueuedAt)},
		{"Updated", displayTime(t.UpdatedAt)},
	}
	if t.RetryAt != "" {
		pairs = append(pairs, [2]string{"Retry at", displayTime(t.RetryAt)})
	}
	if t.FailureReason != "" {
		pairs = append(pairs, [2]string{"Failure", t.FailureReason})
	}
	if t.Failure != nil {
		pairs = append(pairs, [2]string{"Exception", t.Failure.Type + ": " + t.Failure.Message})
	}
	if len(t.Payload) > 0 {
		pairs = append(pairs, [2]string{"Payload", string(t.Payload)})
	}
	return pairs
}

func buildEventRows(events []api.Event) [][]string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		task := "-"
		if e.TaskID != nil {
			task = strconv.FormatInt(*e.TaskID, 10)
		}
		description := e.Description
		if e.Failure != nil && e.Failure.Message != "" {
			description += " (" + e.Failure.Message + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			task,
			displayTime(e.CreatedAt),
			description,
		})
	}
	return rows
}

var eventHeaders = []string{"ID", "Task", "Created", "Description"}

var eventAligns = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
