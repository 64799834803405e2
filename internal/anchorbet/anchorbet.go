// Package anchorbet is a small peer-to-peer side-wager feature kept from
// the original marketplace: a user posts an anchor bet (a claim with
// rules text), optionally naming a specific opponent, and other users back
// either side with cash side bets. It does not touch the order book,
// escrow, or settlement engine — it is an independent cash ledger entry
// against the same balances table.
package anchorbet

import (
	"context"
	"database/sql"
	"time"

	"wager-exchange/internal/money"
)

type Direction string

const (
	DirectionFor     Direction = "FOR"
	DirectionAgainst Direction = "AGAINST"
)

type AnchorBet struct {
	ID          string     `json:"id"`
	CreatorID   string     `json:"creator_id"`
	OpponentID  *string    `json:"opponent_user_id,omitempty"`
	Title       string     `json:"title"`
	RulesText   string     `json:"rules_text"`
	ResolvedFor *Direction `json:"resolved_for,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type SideBet struct {
	ID        string        `json:"id"`
	AnchorID  string        `json:"anchor_id"`
	UserID    string        `json:"user_id"`
	Direction Direction     `json:"direction"`
	Amount    money.Decimal `json:"amount"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists anchor bets and side bets against the same database the
// exchange core uses, debiting/crediting the shared balances table.
type Store struct{ DB *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) Create(ctx context.Context, creatorID, title, rulesText string, opponentID *string) (*AnchorBet, error) {
	ab := &AnchorBet{CreatorID: creatorID, OpponentID: opponentID, Title: title, RulesText: rulesText}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO anchor_bets (creator_id, opponent_user_id, title, rules_text)
		 VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		creatorID, opponentID, title, rulesText,
	).Scan(&ab.ID, &ab.CreatedAt)
	return ab, err
}

func (s *Store) List(ctx context.Context) ([]AnchorBet, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, creator_id, opponent_user_id, title, rules_text, resolved_for, created_at
		 FROM anchor_bets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnchorBet
	for rows.Next() {
		var ab AnchorBet
		var resolved sql.NullString
		if err := rows.Scan(&ab.ID, &ab.CreatorID, &ab.OpponentID, &ab.Title, &ab.RulesText, &resolved, &ab.CreatedAt); err != nil {
			return nil, err
		}
		if resolved.Valid {
			d := Direction(resolved.String)
			ab.ResolvedFor = &d
		}
		out = append(out, ab)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*AnchorBet, error) {
	var ab AnchorBet
	var resolved sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, creator_id, opponent_user_id, title, rules_text, resolved_for, created_at
		 FROM anchor_bets WHERE id=$1`, id,
	).Scan(&ab.ID, &ab.CreatorID, &ab.OpponentID, &ab.Title, &ab.RulesText, &resolved, &ab.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resolved.Valid {
		d := Direction(resolved.String)
		ab.ResolvedFor = &d
	}
	return &ab, nil
}

// CreateSideBet debits the backer's available balance for amount and
// records the bet — a plain cash escrow with no book/matching semantics.
func (s *Store) CreateSideBet(ctx context.Context, anchorID, userID string, direction Direction, amount money.Decimal) (*SideBet, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE balances SET available = available - $1, locked = locked + $1 WHERE user_id=$2`,
		amount, userID); err != nil {
		return nil, err
	}

	sb := &SideBet{AnchorID: anchorID, UserID: userID, Direction: direction, Amount: amount}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO side_bets (anchor_id, user_id, direction, amount) VALUES ($1,$2,$3,$4)
		 RETURNING id, created_at`,
		anchorID, userID, direction, amount,
	).Scan(&sb.ID, &sb.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sb, nil
}
