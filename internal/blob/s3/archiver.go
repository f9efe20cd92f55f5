package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
	"github.com/abhishek3950/AIvsHuman/internal/payout"
)

// SettlementRecord is the archived form of a settled market. Amounts are
// decimal strings in base units.
type SettlementRecord struct {
	MarketID      uint64    `json:"market_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Prediction    string    `json:"prediction"`
	ActualPrice   string    `json:"actual_price"`
	Outcome       string    `json:"outcome"`
	TotalOver     string    `json:"total_over"`
	TotalUnder    string    `json:"total_under"`
	Pool          string    `json:"pool"`
	FeeRate       int64     `json:"fee_rate"`
	Fee           string    `json:"fee"`
	Distributable string    `json:"distributable"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// Archiver implements domain.SettlementArchiver on top of a BlobWriter.
type Archiver struct {
	writer  domain.BlobWriter
	audit   domain.AuditStore
	feeRate int64
	now     func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, feeRate int64) *Archiver {
	return &Archiver{writer: writer, audit: audit, feeRate: feeRate, now: time.Now}
}

// ArchiveSettlement uploads the settled market as JSON and returns its key.
func (a *Archiver) ArchiveSettlement(ctx context.Context, m domain.Market) (string, error) {
	if !m.Settled {
		return "", fmt.Errorf("s3blob: archive market %d: %w", m.ID, domain.ErrMarketNotSettled)
	}
	rec := newSettlementRecord(m, a.feeRate, a.now().UTC())

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("s3blob: encode settlement %d: %w", m.ID, err)
	}

	path := settlementPath(m)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", m.ID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.settlement", map[string]any{
			"market_id": m.ID,
			"path":      path,
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive settlement audit log: %w", err)
		}
	}
	return path, nil
}

func newSettlementRecord(m domain.Market, feeRate int64, at time.Time) SettlementRecord {
	sum := payout.Summarize(m, feeRate)
	return SettlementRecord{
		MarketID:      m.ID,
		StartTime:     m.StartTime.UTC(),
		EndTime:       m.EndTime.UTC(),
		Prediction:    m.Prediction.String(),
		ActualPrice:   m.ActualPrice.String(),
		Outcome:       string(sum.Outcome),
		TotalOver:     m.TotalOver.String(),
		TotalUnder:    m.TotalUnder.String(),
		Pool:          sum.Pool.String(),
		FeeRate:       feeRate,
		Fee:           sum.Fee.String(),
		Distributable: sum.Distributable.String(),
		ArchivedAt:    at,
	}
}

// settlementPath partitions archives by the market's end date:
//
//	settlements/2025/01/31/market-42.json
func settlementPath(m domain.Market) string {
	return fmt.Sprintf("settlements/%s/market-%d.json", m.EndTime.UTC().Format("2006/01/02"), m.ID)
}
