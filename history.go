package main

import (
	"context"
	"time"

	"mockinterview/chart"
	"mockinterview/gateway"
	"mockinterview/log"
)

const emptyHistory = "Complete your first interview to see your progress!"

type plotFunc func(points []chart.Point, opts chart.Options) string

type historyFetcher interface {
	FetchHistory(ctx context.Context) ([]gateway.HistoryPoint, error)
}

type historyMsg struct {
	points []gateway.HistoryPoint
}

// historyView shows the score trend. It is fetched each time the setup
// screen opens.
type historyView struct {
	loaded bool
	points []gateway.HistoryPoint
	plot   plotFunc
}

func newHistoryView(plot plotFunc) historyView {
	if plot == nil {
		plot = chart.Line
	}
	return historyView{plot: plot}
}

// loadHistory fetches the trend; failures are logged and shown as empty.
func loadHistory(ctx context.Context, f historyFetcher) []gateway.HistoryPoint {
	points, err := f.FetchHistory(ctx)
	if err != nil {
		log.Errorf("fetch history: %v", err)
		return nil
	}
	return points
}

func (h historyView) withPoints(points []gateway.HistoryPoint) historyView {
	h.loaded = true
	h.points = points
	return h
}

func (h historyView) render(width int) string {
	if !h.loaded {
		return "Loading history..."
	}
	if len(h.points) == 0 {
		return emptyHistory
	}
	return "Your progress\n" + h.plot(chartPoints(h.points), chart.Options{
		Width:  width,
		Height: 8,
		Min:    0,
		Max:    10,
	})
}

func chartPoints(points []gateway.HistoryPoint) []chart.Point {
	out := make([]chart.Point, len(points))
	for i, p := range points {
		out[i] = chart.Point{Label: dateLabel(p.Date), Value: p.Score}
	}
	return out
}

// dateLabel shortens ISO dates for the x axis and passes anything else through.
func dateLabel(s string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2")
		}
	}
	return s
}
