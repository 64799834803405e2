// Package store is the persistence boundary for the exchange core: a
// Postgres-backed implementation of the transactional contract the engine
// and settlement packages need (atomic multi-row commit, row locking on
// Balance, recovery reads for warm start).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// ── Users ────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, email, hash string, role model.Role) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, role) VALUES ($1,$2,$3)
		 RETURNING id, email, password_hash, role, created_at`, email, hash, role,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, email, role, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ── Balances ─────────────────────────────────────────

func (s *Store) CreateBalance(ctx context.Context, userID string, initial money.Decimal) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO balances (user_id, available, locked) VALUES ($1,$2,0)`, userID, initial)
	return err
}

func (s *Store) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return scanBalance(s.DB.QueryRowContext(ctx,
		`SELECT user_id, available, locked FROM balances WHERE user_id=$1`, userID))
}

// GetBalanceForUpdate row-locks the balance within tx. The engine and
// settlement do not call it: their cash movements are plain UPDATEs inside
// the serializable transaction opened by WithRetry.
func (s *Store) GetBalanceForUpdate(tx *sql.Tx, userID string) (*model.Balance, error) {
	return scanBalance(tx.QueryRow(
		`SELECT user_id, available, locked FROM balances WHERE user_id=$1 FOR UPDATE`, userID))
}

func scanBalance(row *sql.Row) (*model.Balance, error) {
	b := &model.Balance{}
	if err := row.Scan(&b.UserID, &b.Available, &b.Locked); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	b.Total = b.Available.Add(b.Locked)
	return b, nil
}

func AddLocked(tx *sql.Tx, userID string, delta money.Decimal) error {
	_, err := tx.Exec(`UPDATE balances SET locked = locked + $1 WHERE user_id=$2`, delta, userID)
	return err
}

func AddAvailable(tx *sql.Tx, userID string, delta money.Decimal) error {
	_, err := tx.Exec(`UPDATE balances SET available = available + $1 WHERE user_id=$2`, delta, userID)
	return err
}

// MoveToLocked debits available and credits locked atomically — the escrow
// reservation taken for every BUY submission, LIMIT or MARKET.
func MoveToLocked(tx *sql.Tx, userID string, amount money.Decimal) error {
	_, err := tx.Exec(`UPDATE balances SET available = available - $1, locked = locked + $1 WHERE user_id=$2`, amount, userID)
	return err
}

// MoveToAvailable is the inverse — escrow release on cancel, on settlement,
// or of the part of a BUY taker's reservation that neither filled nor rests.
// Cash consumed by fills leaves locked through AddLocked instead.
func MoveToAvailable(tx *sql.Tx, userID string, amount money.Decimal) error {
	_, err := tx.Exec(`UPDATE balances SET available = available + $1, locked = locked - $1 WHERE user_id=$2`, amount, userID)
	return err
}

// ── Markets ──────────────────────────────────────────

func (s *Store) CreateMarket(ctx context.Context, m *model.Market) error {
	return s.DB.QueryRowContext(ctx,
		`INSERT INTO markets (slug,question,category,status,close_time,yes_price,no_price)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id,created_at`, m.Slug, m.Question, m.Category, m.Status, m.CloseTime, m.YesPrice, m.NoPrice,
	).Scan(&m.ID, &m.CreatedAt)
}

func (s *Store) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	return scanMarket(s.DB.QueryRowContext(ctx,
		`SELECT id,slug,question,category,status,outcome,close_time,resolve_time,resolution_source,yes_price,no_price,created_at
		 FROM markets WHERE id=$1`, id))
}

// GetMarketForUpdate row-locks the market during resolution so a concurrent
// resolveMarket call cannot race the engine's settlement transaction.
func (s *Store) GetMarketForUpdate(tx *sql.Tx, id string) (*model.Market, error) {
	return scanMarketRow(tx.QueryRow(
		`SELECT id,slug,question,category,status,outcome,close_time,resolve_time,resolution_source,yes_price,no_price,created_at
		 FROM markets WHERE id=$1 FOR UPDATE`, id))
}

func (s *Store) ListOpenMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,slug,question,category,status,outcome,close_time,resolve_time,resolution_source,yes_price,no_price,created_at
		 FROM markets WHERE status='OPEN'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Market
	for rows.Next() {
		m, err := scanMarketCols(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row *sql.Row) (*model.Market, error) {
	m, err := scanMarketRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func scanMarketRow(row rowScanner) (*model.Market, error) {
	m := &model.Market{}
	var outcome sql.NullString
	err := row.Scan(&m.ID, &m.Slug, &m.Question, &m.Category, &m.Status, &outcome,
		&m.CloseTime, &m.ResolveTime, &m.ResolutionSource, &m.YesPrice, &m.NoPrice, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if outcome.Valid {
		o := model.Outcome(outcome.String)
		m.Outcome = &o
	}
	return m, nil
}

func scanMarketCols(rows *sql.Rows) (*model.Market, error) { return scanMarketRow(rows) }

func (s *Store) UpdateMarketPrices(tx *sql.Tx, marketID string, yes, no money.Decimal) error {
	_, err := tx.Exec(`UPDATE markets SET yes_price=$1, no_price=$2 WHERE id=$3`, yes, no, marketID)
	return err
}

func (s *Store) ResolveMarket(tx *sql.Tx, marketID string, outcome model.Outcome, source string) error {
	_, err := tx.Exec(
		`UPDATE markets SET status='RESOLVED', outcome=$1, resolution_source=$2, resolve_time=now() WHERE id=$3`,
		outcome, source, marketID)
	return err
}

// ── Orders ───────────────────────────────────────────

func InsertOrder(tx *sql.Tx, o *model.Order) error {
	_, err := tx.Exec(
		`INSERT INTO orders (id,market_id,user_id,outcome,side,type,price,quantity,filled,locked_cash,status,cancel_reason,idempotency_key,seq,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.MarketID, o.UserID, o.Outcome, o.Side, o.Type, o.Price, o.Quantity, o.Filled, o.LockedCash, o.Status,
		nullIfEmpty(string(o.CancelReason)), nullIfEmpty(o.IdempotencyKey), o.Seq, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func UpdateOrderFill(tx *sql.Tx, orderID string, filled money.Decimal, lockedCash money.Decimal, status model.OrderStatus) error {
	_, err := tx.Exec(
		`UPDATE orders SET filled=$1, locked_cash=$2, status=$3, updated_at=now() WHERE id=$4`,
		filled, lockedCash, status, orderID)
	return err
}

func CancelOrder(tx *sql.Tx, orderID string, reason model.CancelReason) error {
	_, err := tx.Exec(
		`UPDATE orders SET status='CANCELLED', cancel_reason=$1, updated_at=now() WHERE id=$2`,
		reason, orderID)
	return err
}

const orderCols = `id,market_id,user_id,outcome,side,type,price,quantity,filled,locked_cash,status,idempotency_key,seq,created_at,updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	var price sql.NullString
	var idem sql.NullString
	if err := row.Scan(&o.ID, &o.MarketID, &o.UserID, &o.Outcome, &o.Side, &o.Type, &price, &o.Quantity, &o.Filled,
		&o.LockedCash, &o.Status, &idem, &o.Seq, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if price.Valid {
		p, err := money.FromString(price.String)
		if err != nil {
			return nil, err
		}
		o.Price = &p
	}
	o.IdempotencyKey = idem.String
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (s *Store) GetOrderForUpdate(tx *sql.Tx, id string) (*model.Order, error) {
	o, err := scanOrder(tx.QueryRow(`SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*model.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE user_id=$1 AND idempotency_key=$2 AND created_at > now() - interval '24 hours'`,
		userID, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (s *Store) ListOpenOrders(ctx context.Context, marketID string) ([]model.Order, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE market_id=$1 AND status IN ('OPEN','PARTIAL') ORDER BY created_at, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) ListUserOrders(ctx context.Context, marketID, userID string) ([]model.Order, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE market_id=$1 AND user_id=$2 ORDER BY created_at DESC LIMIT 200`, marketID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) CountOpenOrders(ctx context.Context, marketID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE market_id=$1 AND status IN ('OPEN','PARTIAL')`, marketID).Scan(&n)
	return n, err
}

func (s *Store) CountUserOpenOrders(ctx context.Context, marketID, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE market_id=$1 AND user_id=$2 AND status IN ('OPEN','PARTIAL')`,
		marketID, userID).Scan(&n)
	return n, err
}

func (s *Store) MaxSeq(ctx context.Context, marketID string) (int64, error) {
	var seq int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq),0) FROM (
			SELECT seq FROM orders WHERE market_id=$1
			UNION ALL SELECT seq FROM trades WHERE market_id=$1
		 ) t`, marketID,
	).Scan(&seq)
	return seq, err
}

// ── Trades ───────────────────────────────────────────

func InsertTrade(tx *sql.Tx, t *model.Trade) error {
	_, err := tx.Exec(
		`INSERT INTO trades (id,market_id,outcome,buy_order_id,sell_order_id,buyer_id,seller_id,price,quantity,seq)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.MarketID, t.Outcome, t.BuyOrderID, t.SellOrderID, t.BuyerID, t.SellerID, t.Price, t.Quantity, t.Seq)
	return err
}

func (s *Store) ListTrades(ctx context.Context, marketID string, limit int) ([]model.Trade, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,market_id,outcome,buy_order_id,sell_order_id,buyer_id,seller_id,price,quantity,seq,created_at
		 FROM trades WHERE market_id=$1 ORDER BY created_at DESC LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Outcome, &t.BuyOrderID, &t.SellOrderID, &t.BuyerID, &t.SellerID,
			&t.Price, &t.Quantity, &t.Seq, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTradesByOrder returns every trade an order participated in, on
// either side, ordered by sequence — used to reconstruct an idempotent
// resubmission's prior result.
func (s *Store) ListTradesByOrder(ctx context.Context, orderID string) ([]model.Trade, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,market_id,outcome,buy_order_id,sell_order_id,buyer_id,seller_id,price,quantity,seq,created_at
		 FROM trades WHERE buy_order_id=$1 OR sell_order_id=$1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Outcome, &t.BuyOrderID, &t.SellOrderID, &t.BuyerID, &t.SellerID,
			&t.Price, &t.Quantity, &t.Seq, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastTrades returns the most recent limit trades for one outcome, newest
// first. The engine's mark-price recompute reads prices through
// LastTradesTx instead; nothing in this module calls LastTrades.
func (s *Store) LastTrades(ctx context.Context, marketID string, outcome model.Outcome, limit int) ([]model.Trade, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,market_id,outcome,buy_order_id,sell_order_id,buyer_id,seller_id,price,quantity,seq,created_at
		 FROM trades WHERE market_id=$1 AND outcome=$2 ORDER BY seq DESC LIMIT $3`, marketID, outcome, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Outcome, &t.BuyOrderID, &t.SellOrderID, &t.BuyerID, &t.SellerID,
			&t.Price, &t.Quantity, &t.Seq, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastTradesTx is LastTrades read inside an in-flight transaction, so
// trades inserted earlier in the same commit are visible to the mark-price
// recompute that follows them.
func LastTradesTx(tx *sql.Tx, marketID string, outcome model.Outcome, limit int) ([]money.Decimal, error) {
	rows, err := tx.Query(
		`SELECT price FROM trades WHERE market_id=$1 AND outcome=$2 ORDER BY seq DESC LIMIT $3`,
		marketID, outcome, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []money.Decimal
	for rows.Next() {
		var p money.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ── Positions ────────────────────────────────────────

func UpsertPosition(tx *sql.Tx, marketID, userID string, outcome model.Outcome, qtyDelta money.Decimal, newAvg *money.Decimal) error {
	if newAvg != nil {
		_, err := tx.Exec(
			`INSERT INTO positions (market_id,user_id,outcome,quantity,average_price) VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (market_id,user_id,outcome) DO UPDATE SET quantity = positions.quantity + $4, average_price = $5`,
			marketID, userID, outcome, qtyDelta, *newAvg)
		return err
	}
	_, err := tx.Exec(
		`INSERT INTO positions (market_id,user_id,outcome,quantity,average_price) VALUES ($1,$2,$3,$4,0)
		 ON CONFLICT (market_id,user_id,outcome) DO UPDATE SET quantity = positions.quantity + $4`,
		marketID, userID, outcome, qtyDelta)
	return err
}

func (s *Store) GetPosition(ctx context.Context, marketID, userID string, outcome model.Outcome) (*model.Position, error) {
	p := &model.Position{MarketID: marketID, UserID: userID, Outcome: outcome}
	err := s.DB.QueryRowContext(ctx,
		`SELECT quantity, average_price FROM positions WHERE market_id=$1 AND user_id=$2 AND outcome=$3`,
		marketID, userID, outcome).Scan(&p.Quantity, &p.AveragePrice)
	if err == sql.ErrNoRows {
		return &model.Position{MarketID: marketID, UserID: userID, Outcome: outcome, Quantity: money.Zero, AveragePrice: money.Zero}, nil
	}
	return p, err
}

func (s *Store) GetPositionForUpdate(tx *sql.Tx, marketID, userID string, outcome model.Outcome) (*model.Position, error) {
	p := &model.Position{MarketID: marketID, UserID: userID, Outcome: outcome}
	err := tx.QueryRow(
		`SELECT quantity, average_price FROM positions WHERE market_id=$1 AND user_id=$2 AND outcome=$3 FOR UPDATE`,
		marketID, userID, outcome).Scan(&p.Quantity, &p.AveragePrice)
	if err == sql.ErrNoRows {
		// No row yet: insert a zeroed one under the lock so concurrent
		// submissions serialize on it going forward.
		if _, ierr := tx.Exec(
			`INSERT INTO positions (market_id,user_id,outcome,quantity,average_price) VALUES ($1,$2,$3,0,0)
			 ON CONFLICT DO NOTHING`, marketID, userID, outcome); ierr != nil {
			return nil, ierr
		}
		return &model.Position{MarketID: marketID, UserID: userID, Outcome: outcome, Quantity: money.Zero, AveragePrice: money.Zero}, nil
	}
	return p, err
}

func SetPositionQuantity(tx *sql.Tx, marketID, userID string, outcome model.Outcome, qty money.Decimal) error {
	_, err := tx.Exec(
		`INSERT INTO positions (market_id,user_id,outcome,quantity,average_price) VALUES ($1,$2,$3,$4,0)
		 ON CONFLICT (market_id,user_id,outcome) DO UPDATE SET quantity=$4`,
		marketID, userID, outcome, qty)
	return err
}

func (s *Store) ListMarketPositions(ctx context.Context, marketID string) ([]model.Position, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT market_id,user_id,outcome,quantity,average_price FROM positions WHERE market_id=$1 AND quantity > 0`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.MarketID, &p.UserID, &p.Outcome, &p.Quantity, &p.AveragePrice); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ── Order events ─────────────────────────────────────

func AppendOrderEvent(tx *sql.Tx, orderID, marketID string, kind model.EventKind, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO order_events (order_id, market_id, kind, payload) VALUES ($1,$2,$3,$4)`,
		orderID, marketID, kind, b)
	return err
}

func (s *Store) ListOrderEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, order_id, market_id, kind, payload, created_at FROM order_events WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderEvent
	for rows.Next() {
		var e model.OrderEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.MarketID, &e.Kind, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &e.Payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
