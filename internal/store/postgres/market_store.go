package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

const uniqueViolation = "23505"

const marketColumns = `id, start_time, end_time, prediction::text, actual_price::text,
	total_over::text, total_under::text, paid_out::text, settled`

// MarketStore implements domain.MarketStore using PostgreSQL. Each writer
// is a conditional statement, so its precondition and its update commit
// together.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// CurrentMarket returns the market with the highest id.
func (s *MarketStore) CurrentMarket(ctx context.Context) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets ORDER BY id DESC LIMIT 1`)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.ErrNoMarket
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: current market: %w", err)
	}
	return m, nil
}

// GetMarket returns one market by id.
func (s *MarketStore) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// GetWager returns the account's wager, zero when it never bet.
func (s *MarketStore) GetWager(ctx context.Context, id uint64, account string) (domain.Wager, error) {
	const query = `
		SELECT over_amount::text, under_amount::text, claimed, claimed_amount::text
		FROM wagers WHERE market_id = $1 AND account = $2`

	var over, under, claimedAmount string
	w := domain.ZeroWager()
	err := s.pool.QueryRow(ctx, query, int64(id), account).Scan(&over, &under, &w.Claimed, &claimedAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.requireMarket(ctx, id); err != nil {
			return domain.Wager{}, err
		}
		return w, nil
	}
	if err != nil {
		return domain.Wager{}, fmt.Errorf("postgres: get wager %d/%s: %w", id, account, err)
	}
	if w.Over, err = parseAmount(over); err != nil {
		return domain.Wager{}, err
	}
	if w.Under, err = parseAmount(under); err != nil {
		return domain.Wager{}, err
	}
	if w.ClaimedAmount, err = parseAmount(claimedAmount); err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// MarketCount returns the number of markets.
func (s *MarketStore) MarketCount(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return uint64(n), nil
}

// AppendMarket inserts m with the next id. The insert selects nothing while
// an unsettled market exists, and the single-unsettled index rejects a
// concurrent insert that slipped past that check.
func (s *MarketStore) AppendMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	const query = `
		INSERT INTO markets (id, start_time, end_time, prediction)
		SELECT COALESCE(MAX(id) + 1, 0), $1, $2, $3::numeric
		FROM markets
		HAVING NOT EXISTS (SELECT 1 FROM markets WHERE NOT settled)
		RETURNING ` + marketColumns

	row := s.pool.QueryRow(ctx, query, m.StartTime.UTC(), m.EndTime.UTC(), m.Prediction.String())
	created, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return domain.Market{}, domain.ErrPreviousMarketNotSettled
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: append market: %w", err)
	}
	return created, nil
}

// RecordBet adds amount to the side total and the account's wager in one
// transaction. The market row lock orders the bet against settlement; the
// end_time guard rejects bets recorded after the market locked.
func (s *MarketStore) RecordBet(ctx context.Context, id uint64, account string, side domain.Side, amount, poolCap *big.Int, at time.Time) (domain.Market, error) {
	if !side.Valid() {
		return domain.Market{}, domain.ErrInvalidSide
	}
	overAmt, underAmt := "0", "0"
	if side == domain.SideOver {
		overAmt = amount.String()
	} else {
		underAmt = amount.String()
	}
	capStr := "0"
	if poolCap != nil {
		capStr = poolCap.String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin bet: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updateMarket = `
		UPDATE markets SET
			total_over  = total_over + $2::numeric,
			total_under = total_under + $3::numeric
		WHERE id = $1
		  AND NOT settled
		  AND end_time > $5
		  AND ($4::numeric <= 0 OR total_over + total_under + $2::numeric + $3::numeric <= $4::numeric)
		RETURNING ` + marketColumns

	m, err := scanMarket(tx.QueryRow(ctx, updateMarket, int64(id), overAmt, underAmt, capStr, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, s.betRejection(ctx, id, at)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: record bet %d: %w", id, err)
	}

	const upsertWager = `
		INSERT INTO wagers (market_id, account, over_amount, under_amount)
		VALUES ($1, $2, $3::numeric, $4::numeric)
		ON CONFLICT (market_id, account) DO UPDATE SET
			over_amount  = wagers.over_amount + EXCLUDED.over_amount,
			under_amount = wagers.under_amount + EXCLUDED.under_amount,
			updated_at   = NOW()`
	if _, err := tx.Exec(ctx, upsertWager, int64(id), account, overAmt, underAmt); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: upsert wager %d/%s: %w", id, account, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit bet: %w", err)
	}
	return m, nil
}

// RecordSettlement flips settled exactly once.
func (s *MarketStore) RecordSettlement(ctx context.Context, id uint64, price *big.Int) (domain.Market, error) {
	const query = `
		UPDATE markets SET actual_price = $2::numeric, settled = TRUE, settled_at = NOW()
		WHERE id = $1 AND NOT settled
		RETURNING ` + marketColumns

	m, err := scanMarket(s.pool.QueryRow(ctx, query, int64(id), price.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.requireMarket(ctx, id); err != nil {
			return domain.Market{}, err
		}
		return domain.Market{}, domain.ErrAlreadySettled
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: settle market %d: %w", id, err)
	}
	return m, nil
}

// RecordClaim marks the wager claimed and adds amount to paid_out.
func (s *MarketStore) RecordClaim(ctx context.Context, id uint64, account string, amount *big.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var settled bool
	err = tx.QueryRow(ctx, `SELECT settled FROM markets WHERE id = $1 FOR UPDATE`, int64(id)).Scan(&settled)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lock market %d: %w", id, err)
	}
	if !settled {
		return domain.ErrMarketNotSettled
	}

	var claimed bool
	err = tx.QueryRow(ctx,
		`SELECT claimed FROM wagers WHERE market_id = $1 AND account = $2 FOR UPDATE`,
		int64(id), account,
	).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNothingToClaim
	}
	if err != nil {
		return fmt.Errorf("postgres: lock wager %d/%s: %w", id, account, err)
	}
	if claimed {
		return domain.ErrAlreadyClaimed
	}

	if _, err := tx.Exec(ctx, `
		UPDATE wagers SET claimed = TRUE, claimed_amount = $3::numeric, updated_at = NOW()
		WHERE market_id = $1 AND account = $2`,
		int64(id), account, amount.String(),
	); err != nil {
		return fmt.Errorf("postgres: claim %d/%s: %w", id, account, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE markets SET paid_out = paid_out + $2::numeric WHERE id = $1`,
		int64(id), amount.String(),
	); err != nil {
		return fmt.Errorf("postgres: add paid out %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit claim: %w", err)
	}
	return nil
}

// betRejection explains why the conditional bet update matched no row.
func (s *MarketStore) betRejection(ctx context.Context, id uint64, at time.Time) error {
	var (
		settled bool
		endTime time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT settled, end_time FROM markets WHERE id = $1`, int64(id)).Scan(&settled, &endTime)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("postgres: inspect market %d: %w", id, err)
	case settled, !at.Before(endTime):
		return domain.ErrBettingWindowClosed
	default:
		return domain.ErrMarketBetLimitReached
	}
}

func (s *MarketStore) requireMarket(ctx context.Context, id uint64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, int64(id)).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: market %d exists: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id int64
	var prediction, actual, over, under, paid string
	if err := row.Scan(&id, &m.StartTime, &m.EndTime, &prediction, &actual, &over, &under, &paid, &m.Settled); err != nil {
		return domain.Market{}, err
	}
	m.ID = uint64(id)
	var err error
	for _, f := range []struct {
		dst **big.Int
		src string
	}{
		{&m.Prediction, prediction},
		{&m.ActualPrice, actual},
		{&m.TotalOver, over},
		{&m.TotalUnder, under},
		{&m.PaidOut, paid},
	} {
		if *f.dst, err = parseAmount(f.src); err != nil {
			return domain.Market{}, err
		}
	}
	return m, nil
}

// parseAmount reads a NUMERIC rendered as text.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: invalid amount %q", s)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
