package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"

	"github.com/lib/pq"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

const auctionColumns = `id, title, description, image_ref, start_price, starts_at, end_date,
	owner_id, state, winner_id, winning_bid_id, created_at, updated_at`

const bidColumns = `id, auction_id, bidder_id, amount, status, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRepo is the durable AuctionDB. RunInTx takes a row lock on the
// auction so the exclusion scope also holds across processes.
type PostgresRepo struct {
	*pgQueries
	db *sql.DB
}

// NewPostgresRepo opens and pings a PostgreSQL connection pool
func NewPostgresRepo(connStr string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgresRepoFromDB(db), nil
}

// NewPostgresRepoFromDB wraps an already opened database handle
func NewPostgresRepoFromDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{pgQueries: &pgQueries{q: db}, db: db}
}

// InitSchema creates the tables this service owns plus the users table it reads
func (r *PostgresRepo) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(255) PRIMARY KEY,
		username VARCHAR(255) NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS auctions (
		id VARCHAR(255) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_ref VARCHAR(512) NOT NULL DEFAULT '',
		start_price NUMERIC NOT NULL CHECK (start_price >= 0),
		starts_at TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		owner_id VARCHAR(255) NOT NULL,
		state VARCHAR(32) NOT NULL,
		winner_id VARCHAR(255) NOT NULL DEFAULT '',
		winning_bid_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(255) PRIMARY KEY,
		auction_id VARCHAR(255) NOT NULL,
		bidder_id VARCHAR(255) NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		status VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		FOREIGN KEY (auction_id) REFERENCES auctions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_state_end_date ON auctions(state, end_date);
	CREATE INDEX IF NOT EXISTS idx_auctions_owner_id ON auctions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_id ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_bids_bidder_id ON bids(bidder_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_one_winning ON bids(auction_id) WHERE status = 'winning';
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, storageErr("check user "+userID, err)
	}
	return exists, nil
}

// AddUser registers a user row; an existing id is left unchanged
func (r *PostgresRepo) AddUser(ctx context.Context, user model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		user.UserID, user.Username)
	if err != nil {
		return storageErr("add user "+user.UserID, err)
	}
	return nil
}

// SaveBids writes all bids inside one transaction
func (r *PostgresRepo) SaveBids(ctx context.Context, bids ...model.Bid) error {
	return r.withTx(ctx, func(q *pgQueries) error {
		return q.SaveBids(ctx, bids...)
	})
}

func (r *PostgresRepo) RunInTx(ctx context.Context, auctionID string, fn func(tx Tx) error) error {
	return r.withTx(ctx, func(q *pgQueries) error {
		var id string
		err := q.q.QueryRowContext(ctx, `SELECT id FROM auctions WHERE id = $1 FOR UPDATE`, auctionID).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return storageErr("lock auction "+auctionID, err)
		}
		return fn(q)
	})
}

func (r *PostgresRepo) withTx(ctx context.Context, fn func(q *pgQueries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	if err := fn(&pgQueries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// Close closes the database connection
func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// pgQueries implements Tx on top of a pool or a transaction
type pgQueries struct {
	q querier
}

func (p *pgQueries) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	row := p.q.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID)

	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, storageErr("get auction "+auctionID, err)
	}
	return a, nil
}

func (p *pgQueries) SaveAuction(ctx context.Context, a model.Auction) error {
	if a.AuctionID == "" || !a.State.Valid() {
		return fmt.Errorf("save auction %q: %w - missing id or unknown state %q", a.AuctionID, biddingerrors.ErrInvalidAuction, a.State)
	}

	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_ref = EXCLUDED.image_ref,
			start_price = EXCLUDED.start_price,
			starts_at = EXCLUDED.starts_at,
			state = EXCLUDED.state,
			winner_id = EXCLUDED.winner_id,
			winning_bid_id = EXCLUDED.winning_bid_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.q.ExecContext(ctx, query,
		a.AuctionID, a.Title, a.Description, a.ImageRef, a.StartPrice, a.StartsAt, a.EndDate,
		a.OwnerID, string(a.State), a.WinnerID, a.WinningBidID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return storageErr("save auction "+a.AuctionID, err)
	}
	return nil
}

func (p *pgQueries) DeleteAuction(ctx context.Context, auctionID string) error {
	result, err := p.q.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, auctionID)
	if err != nil {
		return storageErr("delete auction "+auctionID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("delete auction "+auctionID, err)
	}
	if rows == 0 {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

func (p *pgQueries) FindDue(ctx context.Context, now time.Time) ([]model.Auction, error) {
	return p.queryAuctions(ctx, "find due auctions",
		`SELECT `+auctionColumns+` FROM auctions WHERE state = $1 AND end_date <= $2 ORDER BY end_date, id`,
		string(model.StateOpen), now)
}

func (p *pgQueries) FindStartable(ctx context.Context, now time.Time) ([]model.Auction, error) {
	return p.queryAuctions(ctx, "find startable auctions",
		`SELECT `+auctionColumns+` FROM auctions WHERE state = $1 AND starts_at <= $2 ORDER BY starts_at, id`,
		string(model.StateScheduled), now)
}

func (p *pgQueries) ListByOwner(ctx context.Context, ownerID string) ([]model.Auction, error) {
	return p.queryAuctions(ctx, "list auctions of "+ownerID,
		`SELECT `+auctionColumns+` FROM auctions WHERE owner_id = $1 ORDER BY created_at DESC, id`,
		ownerID)
}

func (p *pgQueries) ListEndingSoon(ctx context.Context, limit int) ([]model.Auction, error) {
	return p.queryAuctions(ctx, "list ending soon",
		`SELECT `+auctionColumns+` FROM auctions WHERE state = $1 ORDER BY end_date, id LIMIT NULLIF($2, 0)`,
		string(model.StateOpen), limit)
}

func (p *pgQueries) ListNewest(ctx context.Context, limit int) ([]model.Auction, error) {
	return p.queryAuctions(ctx, "list newest",
		`SELECT `+auctionColumns+` FROM auctions ORDER BY created_at DESC, id LIMIT NULLIF($1, 0)`,
		limit)
}

func (p *pgQueries) SaveBids(ctx context.Context, bids ...model.Bid) error {
	query := `
		INSERT INTO bids (` + bidColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	for _, b := range bids {
		if err := storable(b); err != nil {
			return err
		}
		_, err := p.q.ExecContext(ctx, query,
			b.BidID, b.AuctionID, b.BidderID, b.Amount, string(b.Status), b.CreatedAt, b.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				switch pqErr.Code {
				case pqForeignKeyViolation:
					return fmt.Errorf("save bid %s for auction %s: %w", b.BidID, b.AuctionID, biddingerrors.ErrAuctionNotFound)
				case pqUniqueViolation:
					// another writer holds the auction's winning slot
					return fmt.Errorf("save bid %s for auction %s: %w", b.BidID, b.AuctionID, biddingerrors.ErrConflict)
				}
			}
			return storageErr("save bid "+b.BidID, err)
		}
	}
	return nil
}

func (p *pgQueries) FindBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	bids, err := p.queryBids(ctx, "get bids for auction "+auctionID,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY created_at, id`, auctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

func (p *pgQueries) FindWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 AND status = $2 LIMIT 1`,
		auctionID, string(model.BidWinning))

	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, storageErr("get winning bid for auction "+auctionID, err)
	}
	return b, nil
}

func (p *pgQueries) FindBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	bids, err := p.queryBids(ctx, "get bids for user "+bidderID,
		`SELECT `+bidColumns+` FROM bids WHERE bidder_id = $1 ORDER BY created_at, id`, bidderID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}
	return bids, nil
}

func (p *pgQueries) queryAuctions(ctx context.Context, op, query string, args ...any) ([]model.Auction, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func (p *pgQueries) queryBids(ctx context.Context, op, query string, args ...any) ([]model.Bid, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]model.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(s scanner) (model.Auction, error) {
	var (
		a     model.Auction
		state string
	)
	err := s.Scan(&a.AuctionID, &a.Title, &a.Description, &a.ImageRef, &a.StartPrice, &a.StartsAt, &a.EndDate,
		&a.OwnerID, &state, &a.WinnerID, &a.WinningBidID, &a.CreatedAt, &a.UpdatedAt)
	a.State = model.AuctionState(state)
	return a, err
}

func scanBid(s scanner) (model.Bid, error) {
	var (
		b      model.Bid
		status string
	)
	err := s.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &status, &b.CreatedAt, &b.UpdatedAt)
	b.Status = model.BidStatus(status)
	return b, err
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, biddingerrors.ErrStorage, err)
}
