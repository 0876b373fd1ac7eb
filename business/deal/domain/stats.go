package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStats aggregates deals over a partner and time range.
type DealStats struct {
	TotalDeals     int             `json:"totalDeals"`
	PendingDeals   int             `json:"pendingDeals"`
	ExecutingDeals int             `json:"executingDeals"`
	CompletedDeals int             `json:"completedDeals"`
	FailedDeals    int             `json:"failedDeals"`
	CancelledDeals int             `json:"cancelledDeals"`
	SuccessRate    decimal.Decimal `json:"successRate"` // percent
	TotalVolume    decimal.Decimal `json:"totalVolume"`
	TotalProfit    decimal.Decimal `json:"totalProfit"`
	// AverageExecutionTime is in milliseconds.
	AverageExecutionTime int64           `json:"averageExecutionTime"`
	AverageSpread        decimal.Decimal `json:"averageSpread"`
}

// ComputeStats aggregates deals. PENDING and APPROVED count as pending;
// EXECUTING, EXECUTED and SETTLING count as executing.
func ComputeStats(deals []Deal) DealStats {
	stats := DealStats{
		SuccessRate:   decimal.Zero,
		TotalVolume:   decimal.Zero,
		TotalProfit:   decimal.Zero,
		AverageSpread: decimal.Zero,
	}

	var (
		spreadSum decimal.Decimal
		execSum   time.Duration
		execCount int64
	)
	for _, d := range deals {
		stats.TotalDeals++
		stats.TotalVolume = stats.TotalVolume.Add(d.TotalValue)
		spreadSum = spreadSum.Add(d.Metadata.Spread)

		switch d.Status {
		case StatusPending, StatusApproved:
			stats.PendingDeals++
		case StatusExecuting, StatusExecuted, StatusSettling:
			stats.ExecutingDeals++
		case StatusCompleted:
			stats.CompletedDeals++
			stats.TotalProfit = stats.TotalProfit.Add(d.Profit())
		case StatusFailed:
			stats.FailedDeals++
		case StatusCancelled:
			stats.CancelledDeals++
		}

		if elapsed, ok := d.ExecutionTime(); ok {
			execSum += elapsed
			execCount++
		}
	}

	if stats.TotalDeals == 0 {
		return stats
	}

	total := decimal.NewFromInt(int64(stats.TotalDeals))
	stats.SuccessRate = decimal.NewFromInt(int64(stats.CompletedDeals)).
		Mul(decimal.NewFromInt(100)).
		DivRound(total, 2)
	stats.AverageSpread = spreadSum.Div(total)
	if execCount > 0 {
		stats.AverageExecutionTime = (execSum / time.Duration(execCount)).Milliseconds()
	}
	return stats
}
