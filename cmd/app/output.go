package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/opencaretools/abctrack/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func itemLabels(items []domain.CatalogItem) string {
	if len(items) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	return strings.Join(labels, ",")
}

func printChildren(items []domain.Child) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.Name, formatDate(item.DOB), formatTime(item.CreatedAt)})
	}
	printTable([]string{"ID", "NAME", "DOB", "CREATED_AT"}, rows)
}

func printCatalogItems(items []domain.CatalogItem) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.Label, formatTime(item.CreatedAt)})
	}
	printTable([]string{"ID", "LABEL", "CREATED_AT"}, rows)
}

func printIncidents(items []domain.ExpandedIncident) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Child.Name,
			formatTime(item.Timestamp),
			strconv.Itoa(item.Intensity),
			itemLabels(item.Behaviors),
			incidentLocation(item),
		})
	}
	printTable([]string{"ID", "CHILD", "TIME", "INTENSITY", "BEHAVIORS", "LOCATION"}, rows)
}

func incidentLocation(item domain.ExpandedIncident) string {
	if item.Location != nil {
		return item.Location.Label
	}
	if item.LocationText != "" {
		return item.LocationText
	}
	return "-"
}

func printIncident(item domain.ExpandedIncident) {
	rows := [][2]string{
		{"id", item.ID},
		{"child", fmt.Sprintf("%s (%s)", item.Child.Name, item.ChildID)},
		{"time", formatTime(item.Timestamp)},
		{"intensity", strconv.Itoa(item.Intensity)},
		{"function", string(item.FunctionHypothesis)},
		{"behaviors", itemLabels(item.Behaviors)},
		{"antecedents", itemLabels(item.Antecedents)},
		{"consequences", itemLabels(item.Consequences)},
		{"interventions", itemLabels(item.Interventions)},
		{"location", incidentLocation(item)},
	}
	if item.BehaviorText != "" {
		rows = append(rows, [2]string{"behavior_text", item.BehaviorText})
	}
	if item.DurationSec != nil {
		rows = append(rows, [2]string{"duration_sec", strconv.Itoa(*item.DurationSec)})
	}
	if item.LatencySec != nil {
		rows = append(rows, [2]string{"latency_sec", strconv.Itoa(*item.LatencySec)})
	}
	if len(item.Tags) > 0 {
		rows = append(rows, [2]string{"tags", strings.Join(item.Tags, ",")})
	}
	if item.Notes != "" {
		rows = append(rows, [2]string{"notes", item.Notes})
	}
	printKV(rows)
}

func printSummary(item domain.ReportSummary) {
	printKV([][2]string{{"total", strconv.Itoa(item.Total)}})

	hourRows := make([][]string, 0, 24)
	for hour, count := range item.ByHour {
		if count == 0 {
			continue
		}
		hourRows = append(hourRows, []string{fmt.Sprintf("%02d:00", hour), strconv.Itoa(count)})
	}
	if len(hourRows) > 0 {
		fmt.Println()
		printTable([]string{"HOUR", "COUNT"}, hourRows)
	}

	intensityRows := make([][]string, 0, 5)
	for i, count := range item.ByIntensity {
		if count == 0 {
			continue
		}
		intensityRows = append(intensityRows, []string{strconv.Itoa(i + 1), strconv.Itoa(count)})
	}
	if len(intensityRows) > 0 {
		fmt.Println()
		printTable([]string{"INTENSITY", "COUNT"}, intensityRows)
	}

	if len(item.ByDay) > 0 {
		fmt.Println()
		dayRows := make([][]string, 0, len(item.ByDay))
		for _, day := range item.ByDay {
			dayRows = append(dayRows, []string{day.Day, strconv.Itoa(day.Count)})
		}
		printTable([]string{"DAY", "COUNT"}, dayRows)
	}
}
