// Package plot renders an interval manager as an HTML page of charts.
package plot

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

const (
	// DefaultBuckets is the number of occupancy buckets.
	DefaultBuckets = 100
	// DefaultTopIntervals is the number of largest intervals charted.
	DefaultTopIntervals = 20

	chartWidth   = "1200px"
	chartHeight  = "500px"
	xAxisRotate  = 60
	percentScale = 100
	freeColor    = "#91cc75"
	usedColor    = "#ee6666"
)

// Options tune the rendered page.
type Options struct {
	Title        string
	Buckets      int
	TopIntervals int
}

// Occupancy splits [0, limit] into at most buckets equal slices and returns
// the start of each slice and the share of it that is available, in percent.
func Occupancy(mgr *itvl.Manager, buckets int) ([]itvl.ID, []float64) {
	space := uint64(mgr.Limit()) + 1
	buckets = int(min(uint64(max(buckets, 1)), space))
	width := (space + uint64(buckets) - 1) / uint64(buckets)
	buckets = int((space + width - 1) / width)

	starts := make([]itvl.ID, buckets)
	avail := make([]uint64, buckets)

	for b := range buckets {
		starts[b] = itvl.ID(uint64(b) * width)
	}

	for iv := range mgr.All() {
		lo, hi := uint64(iv.Start), uint64(iv.End)

		for b := lo / width; b <= hi/width; b++ {
			bucketLo := b * width
			bucketHi := bucketLo + width - 1
			avail[b] += min(hi, bucketHi) - max(lo, bucketLo) + 1
		}
	}

	shares := make([]float64, buckets)

	for b := range buckets {
		size := min(width, space-uint64(starts[b]))
		shares[b] = float64(avail[b]) * percentScale / float64(size)
	}

	return starts, shares
}

// LargestIntervals returns the n longest available intervals, longest first.
// Ties keep ascending order.
func LargestIntervals(mgr *itvl.Manager, n int) []itvl.Interval {
	ivs := mgr.Intervals()

	slices.SortStableFunc(ivs, func(a, b itvl.Interval) int {
		return cmp.Compare(b.Len(), a.Len())
	})

	if len(ivs) > n {
		ivs = ivs[:n]
	}

	return ivs
}

// Render writes an HTML page with the occupancy and largest interval charts.
func Render(w io.Writer, mgr *itvl.Manager, o Options) error {
	if o.Buckets <= 0 {
		o.Buckets = DefaultBuckets
	}

	if o.TopIntervals <= 0 {
		o.TopIntervals = DefaultTopIntervals
	}

	page := components.NewPage()
	if o.Title != "" {
		page.PageTitle = o.Title
	}

	page.AddCharts(occupancyChart(mgr, o.Buckets), largestChart(mgr, o.TopIntervals))

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func occupancyChart(mgr *itvl.Manager, buckets int) *charts.Bar {
	starts, shares := Occupancy(mgr, buckets)

	labels := make([]string, len(starts))
	free := make([]opts.BarData, len(starts))
	used := make([]opts.BarData, len(starts))

	for i, start := range starts {
		labels[i] = fmt.Sprint(start)
		free[i] = opts.BarData{Value: shares[i]}
		used[i] = opts.BarData{Value: percentScale - shares[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Occupancy",
			Subtitle: fmt.Sprintf("Identifiers 0-%d in %d slices", mgr.Limit(), len(starts)),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "slice start", AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Max: percentScale}),
	)
	bar.SetXAxis(labels).
		AddSeries("available", free, charts.WithItemStyleOpts(opts.ItemStyle{Color: freeColor})).
		AddSeries("used", used, charts.WithItemStyleOpts(opts.ItemStyle{Color: usedColor})).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "share"}))

	return bar
}

func largestChart(mgr *itvl.Manager, n int) *charts.Bar {
	ivs := LargestIntervals(mgr, n)

	labels := make([]string, len(ivs))
	data := make([]opts.BarData, len(ivs))

	for i, iv := range ivs {
		labels[i] = fmt.Sprintf("%d-%d", iv.Start, iv.End)
		data[i] = opts.BarData{Value: iv.Len()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Largest available intervals",
			Subtitle: fmt.Sprintf("%d of %d intervals", len(ivs), mgr.Len()),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "identifiers"}),
	)
	bar.SetXAxis(labels).AddSeries("length", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: freeColor}))

	return bar
}
