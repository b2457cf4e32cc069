// Package report summarises a converted dataset tree and renders the
// per-split category counts as a standalone HTML bar chart.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// layout artifacts under the dataset root that are not split directories
var skipDirs = map[string]struct{}{
	"splits": {},
	"lmdb":   {},
}

// Summary counts models per split and category in a flat dataset tree.
type Summary struct {
	Root   string
	Counts map[string]map[string]int // split -> category -> models
}

// Scan walks a flat dataset tree and counts the model directories under
// each split and category.
func Scan(root string) (*Summary, error) {
	summary := &Summary{Root: root, Counts: make(map[string]map[string]int)}

	splitEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	for _, splitEntry := range splitEntries {
		if !splitEntry.IsDir() {
			continue
		}
		if _, skip := skipDirs[splitEntry.Name()]; skip {
			continue
		}
		split := splitEntry.Name()

		// Paired trees interpose a role directory between the split
		// and the categories; count from the partial side there.
		catRoot := filepath.Join(root, split)
		if info, err := os.Stat(filepath.Join(catRoot, "partial")); err == nil && info.IsDir() {
			catRoot = filepath.Join(catRoot, "partial")
		}

		catEntries, err := os.ReadDir(catRoot)
		if err != nil {
			return nil, err
		}
		for _, catEntry := range catEntries {
			if !catEntry.IsDir() {
				continue
			}
			modelEntries, err := os.ReadDir(filepath.Join(catRoot, catEntry.Name()))
			if err != nil {
				return nil, err
			}
			models := 0
			for _, modelEntry := range modelEntries {
				if modelEntry.IsDir() {
					models++
				}
			}
			if models == 0 {
				continue
			}
			if summary.Counts[split] == nil {
				summary.Counts[split] = make(map[string]int)
			}
			summary.Counts[split][catEntry.Name()] = models
		}
	}
	return summary, nil
}

// Total returns the model count across all splits and categories.
func (s *Summary) Total() int {
	total := 0
	for _, categories := range s.Counts {
		for _, n := range categories {
			total += n
		}
	}
	return total
}

// Categories returns the sorted union of category names across splits.
func (s *Summary) Categories() []string {
	seen := make(map[string]struct{})
	for _, categories := range s.Counts {
		for category := range categories {
			seen[category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Splits returns the sorted split names present in the summary.
func (s *Summary) Splits() []string {
	splits := make([]string, 0, len(s.Counts))
	for split := range s.Counts {
		splits = append(splits, split)
	}
	sort.Strings(splits)
	return splits
}

// WriteHTML renders the summary as a grouped bar chart, one series per
// split, and writes the page to path.
func (s *Summary) WriteHTML(path string) error {
	categories := s.Categories()

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dataset Summary", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Models per Category",
			Subtitle: fmt.Sprintf("%s | %d models | %s", s.Root, s.Total(), time.Now().Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(categories)
	for _, split := range s.Splits() {
		data := make([]opts.BarData, len(categories))
		for i, category := range categories {
			data[i] = opts.BarData{Value: s.Counts[split][category]}
		}
		bar.AddSeries(split, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}

	page := components.NewPage()
	page.AddCharts(bar)

	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer fh.Close()
	if err := page.Render(fh); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
