package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// CycleReport summarizes one completed matching cycle for admin
// dashboards and audit logs.
type CycleReport struct {
	CycleID         string
	Pair            domain.Pair
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	BuyPoolSize     int
	SellPoolSize    int
	MatchCount      int
	VolumeNGN       int64 // kobo matched this cycle
	VolumeCNY       int64 // fen matched this cycle
	ExpiredCount    int
	RateUsed        string
	RateSource      string
	ConflictRetried bool
}

// newCycleID builds a sortable, human-scannable cycle identifier.
func newCycleID(startedAt time.Time) string {
	return fmt.Sprintf("MC-%s-%s", startedAt.UTC().Format("20060102-150405"), uuid.New().String()[:8])
}

// buildReport assembles the report from the cycle's inputs and results.
func buildReport(
	cycleID string,
	pair domain.Pair,
	startedAt, completedAt time.Time,
	buyPoolSize, sellPoolSize int,
	proposal *Proposal,
	expiredCount int,
	quote *domain.RateQuote,
	conflictRetried bool,
) *CycleReport {
	var volNGN, volCNY int64
	for _, m := range proposal.Matches {
		volNGN += m.MatchedAmountNGN
		volCNY += m.MatchedAmountCNY
	}

	return &CycleReport{
		CycleID:         cycleID,
		Pair:            pair,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		Duration:        completedAt.Sub(startedAt),
		BuyPoolSize:     buyPoolSize,
		SellPoolSize:    sellPoolSize,
		MatchCount:      len(proposal.Matches),
		VolumeNGN:       volNGN,
		VolumeCNY:       volCNY,
		ExpiredCount:    expiredCount,
		RateUsed:        quote.Rate.String(),
		RateSource:      quote.Source,
		ConflictRetried: conflictRetried,
	}
}
