// Package report turns transaction sets into charts and spreadsheet links.
package report

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Point is the running balance at the end of one day.
type Point struct {
	Day     string
	Balance decimal.Decimal
}

// CashFlowSeries accumulates credits minus debits over the days of interval
// that had any movement.
func CashFlowSeries(txs []*domain.Transaction, interval domain.Interval) []Point {
	in := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if interval.Contains(tx.OccurredAt) {
			in = append(in, tx)
		}
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].OccurredAt.Before(in[j].OccurredAt) })

	var points []Point
	balance := decimal.Zero
	for _, tx := range in {
		if tx.Type == domain.TransactionCredit {
			balance = balance.Add(tx.Amount)
		} else {
			balance = balance.Sub(tx.Amount)
		}
		day := tx.OccurredAt.In(interval.Start.Location()).Format("02/01")
		if n := len(points); n > 0 && points[n-1].Day == day {
			points[n-1].Balance = balance
			continue
		}
		points = append(points, Point{Day: day, Balance: balance})
	}
	return points
}

type chartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
	Fill  bool      `json:"fill"`
}

type chartConfig struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string       `json:"labels"`
		Datasets []chartDataset `json:"datasets"`
	} `json:"data"`
	Options struct {
		Title struct {
			Display bool   `json:"display"`
			Text    string `json:"text"`
		} `json:"title"`
	} `json:"options"`
}

// ChartLinks implements out.ChartRenderer by encoding a Chart.js config into
// a chart service URL.
type ChartLinks struct {
	baseURL string
	width   int
	height  int
}

var _ out.ChartRenderer = (*ChartLinks)(nil)

// NewChartLinks creates a renderer for the chart service at baseURL.
func NewChartLinks(baseURL string) *ChartLinks {
	return &ChartLinks{baseURL: strings.TrimRight(baseURL, "/"), width: 800, height: 400}
}

// RenderCashFlow returns a chart URL plotting the running balance per day.
func (c *ChartLinks) RenderCashFlow(_ context.Context, _ *domain.User, interval domain.Interval, txs []*domain.Transaction) (string, error) {
	points := CashFlowSeries(txs, interval)
	if len(points) == 0 {
		return "", nil
	}

	var cfg chartConfig
	cfg.Type = "line"
	ds := chartDataset{Label: "Saldo acumulado (R$)"}
	for _, p := range points {
		cfg.Data.Labels = append(cfg.Data.Labels, p.Day)
		ds.Data = append(ds.Data, p.Balance.InexactFloat64())
	}
	cfg.Data.Datasets = []chartDataset{ds}
	cfg.Options.Title.Display = true
	cfg.Options.Title.Text = "Fluxo de Caixa de " + interval.Label()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode chart: %w", err)
	}
	q := url.Values{}
	q.Set("c", string(raw))
	q.Set("w", fmt.Sprint(c.width))
	q.Set("h", fmt.Sprint(c.height))
	return c.baseURL + "?" + q.Encode(), nil
}
