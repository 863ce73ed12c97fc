// Command plot renders training progress CSV files as an
// HTML line chart.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/unixpickle/essentials"
)

type series struct {
	Name    string
	Updates []int
	Rewards []float64
}

func main() {
	var outFile string
	var title string
	flag.StringVar(&outFile, "out", "rewards.html", "output HTML file")
	flag.StringVar(&title, "title", "Mean episode reward", "chart title")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plot [flags] <progress.csv> [...]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var all []*series
	for _, path := range flag.Args() {
		s, err := readSeries(path)
		if err != nil {
			essentials.Die(err)
		}
		all = append(all, s)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "update"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xLabels(all))
	for _, s := range all {
		items := make([]opts.LineData, len(s.Rewards))
		for i, r := range s.Rewards {
			items[i] = opts.LineData{Value: r}
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)
	f, err := os.Create(outFile)
	if err != nil {
		essentials.Die(err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		essentials.Die(err)
	}
}

func readSeries(path string) (res *series, err error) {
	defer essentials.AddCtxTo("read "+path, &err)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	res = &series{Name: strings.TrimSuffix(filepath.Base(path), ".csv")}
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		update, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, err
		}
		reward, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, err
		}
		res.Updates = append(res.Updates, update)
		res.Rewards = append(res.Rewards, reward)
	}
	return res, nil
}

// xLabels uses the updates of the longest series.
func xLabels(all []*series) []string {
	var longest *series
	for _, s := range all {
		if longest == nil || len(s.Updates) > len(longest.Updates) {
			longest = s
		}
	}
	labels := make([]string, len(longest.Updates))
	for i, u := range longest.Updates {
		labels[i] = strconv.Itoa(u)
	}
	return labels
}
