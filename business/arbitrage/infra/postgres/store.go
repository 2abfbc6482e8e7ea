package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// Store keeps the indexed fields in columns and the full record as JSONB.
// The id, created_at and active columns win over the payload on read.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates a Store on db. Run Migrate first.
func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

const selectCols = `id, created_at, active, payload`

func (s *Store) Add(ctx context.Context, opp *domain.Opportunity) (uint64, error) {
	if err := opp.Validate(); err != nil {
		return 0, err
	}

	c := opp.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return 0, apperror.Internal(apperror.CodeStoreFailure, "encode opportunity", err)
	}

	const query = `
		INSERT INTO opportunities (created_at, strategy, pair, profit_pct, active, payload)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING id`

	var id int64
	err = s.db.QueryRow(ctx, query,
		c.CreatedAt, string(c.Strategy), c.Pair, c.ProfitPct.String(), c.Active, payload,
	).Scan(&id)
	if err != nil {
		return 0, storeErr("insert opportunity", err)
	}

	opp.ID, opp.CreatedAt = uint64(id), c.CreatedAt
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*domain.Opportunity, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectCols+` FROM opportunities WHERE id = $1`, int64(id))
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get opportunity %d", id), err)
	}
	return o, nil
}

// Deactivate is a single UPDATE, so concurrent callers serialise on the row lock.
func (s *Store) Deactivate(ctx context.Context, id uint64) (*domain.Opportunity, error) {
	const query = `
		UPDATE opportunities SET active = FALSE
		WHERE id = $1
		RETURNING ` + selectCols

	o, err := scanOpportunity(s.db.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeErr(fmt.Sprintf("deactivate opportunity %d", id), err)
	}
	return o, nil
}

func (s *Store) List(ctx context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error) {
	const query = `
		SELECT ` + selectCols + `
		FROM opportunities
		WHERE active
			AND profit_pct >= $1::numeric
			AND ($2::text = '' OR strategy = $2::text)
		ORDER BY profit_pct DESC, id ASC`

	rows, err := s.db.Query(ctx, query, minProfit.String(), string(strategy))
	if err != nil {
		return nil, storeErr("list opportunities", err)
	}
	defer rows.Close()

	out := []*domain.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, storeErr("scan opportunity", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list opportunities rows", err)
	}
	return out, nil
}

func (s *Store) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE opportunities SET active = FALSE WHERE active AND created_at < $1`, cutoff)
	if err != nil {
		return 0, storeErr("expire opportunities", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks the connection with a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func scanOpportunity(row pgx.Row) (*domain.Opportunity, error) {
	var (
		id        int64
		createdAt time.Time
		active    bool
		payload   []byte
	)
	if err := row.Scan(&id, &createdAt, &active, &payload); err != nil {
		return nil, err
	}

	var o domain.Opportunity
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("decode payload of %d: %w", id, err)
	}
	o.ID = uint64(id)
	o.CreatedAt = createdAt
	o.Active = active
	return &o, nil
}

func notFound(id uint64) error {
	return apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprintf("opportunity %d", id))
}

func storeErr(op string, err error) error {
	return apperror.Internal(apperror.CodeStoreFailure, "postgres: "+op, err)
}
