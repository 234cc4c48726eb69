package stats

import (
	"context"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	abandonmentWindow = 30 * 24 * time.Hour
	hotLeadWindow     = 24 * time.Hour

	queryTimeout = 15 * time.Second
)

// RecordLister is the slice of the mirror repository the aggregator needs.
type RecordLister interface {
	ListOpen(ctx context.Context, since time.Time) ([]domain.AbandonedCartRecord, error)
	CountRecovered(ctx context.Context, since time.Time) (int64, error)
}

type Summary struct {
	TotalCarts       int     `json:"total_carts"`
	PotentialRevenue float64 `json:"potential_revenue"`
	RemindedCount    int     `json:"reminded_count"`
	RecoveredCount   int64   `json:"recovered_count"`
	HotLeads         int     `json:"hot_leads"`
}

// Aggregator computes read-only metrics over the open record set. Every call
// recomputes from the current records; there is no cache, only singleflight
// to collapse concurrent admin reads into one query.
type Aggregator struct {
	records RecordLister
	sfg     singleflight.Group
}

func NewAggregator(records RecordLister) *Aggregator {
	return &Aggregator{records: records}
}

func (a *Aggregator) Snapshot(_ context.Context) (*Summary, error) {
	v, err, _ := a.sfg.Do("summary", func() (interface{}, error) {
		// The flight is shared by every concurrent caller, so it runs on its
		// own context: the first caller hanging up must not poison the result
		// for the others.
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		now := time.Now()

		records, errList := a.records.ListOpen(ctx, now.Add(-abandonmentWindow))
		if errList != nil {
			return nil, errList
		}

		recovered, errCount := a.records.CountRecovered(ctx, now.Add(-abandonmentWindow))
		if errCount != nil {
			return nil, errCount
		}

		summary := &Summary{RecoveredCount: recovered}
		hotSince := now.Add(-hotLeadWindow)

		for _, r := range records {
			summary.TotalCarts++
			summary.PotentialRevenue += r.Total
			if r.RemindersSent > 0 {
				summary.RemindedCount++
			}
			if r.AbandonedAt.After(hotSince) {
				summary.HotLeads++
			}
		}
		summary.PotentialRevenue = domain.Round2(summary.PotentialRevenue)

		return summary, nil
	})

	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}
