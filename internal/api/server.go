// Package api is the HTTP/WS surface: chi routing, JWT auth, and the
// engineerr.Kind -> status code mapping every handler funnels errors
// through.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wager-exchange/internal/anchorbet"
	"wager-exchange/internal/engine"
	"wager-exchange/internal/engineerr"
	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
	"wager-exchange/internal/settlement"
	"wager-exchange/internal/store"
	"wager-exchange/internal/ws"
)

type Server struct {
	store      *store.Store
	manager    *engine.Manager
	house      *settlement.House
	anchorbets *anchorbet.Store
	hub        *ws.Hub
	secret     []byte
	log        *zap.Logger
	initialBal money.Decimal
}

func NewServer(st *store.Store, mgr *engine.Manager, house *settlement.House, ab *anchorbet.Store, hub *ws.Hub, jwtSecret string, initialBalance money.Decimal, logger *zap.Logger) *Server {
	return &Server{
		store: st, manager: mgr, house: house, anchorbets: ab, hub: hub,
		secret: []byte(jwtSecret), log: logger, initialBal: initialBalance,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})

	r.Post("/api/register", s.register)
	r.Post("/api/login", s.login)

	r.Get("/ws", s.hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/api/balance", s.getBalance)

		r.Get("/api/markets", s.listMarkets)
		r.Get("/api/markets/{id}", s.getMarket)
		r.Get("/api/markets/{id}/book", s.getBook)
		r.Get("/api/markets/{id}/trades", s.getTrades)

		r.Post("/api/markets/{id}/orders", s.placeOrder)
		r.Delete("/api/orders/{id}", s.cancelOrder)
		r.Get("/api/markets/{id}/orders", s.listOrders)

		r.Get("/api/markets/{id}/positions/me", s.getMyPosition)
		r.Get("/api/markets/{id}/positions", s.listPositions)

		r.Post("/api/anchor-bets", s.createAnchorBet)
		r.Get("/api/anchor-bets", s.listAnchorBets)
		r.Get("/api/anchor-bets/{id}", s.getAnchorBet)
		r.Post("/api/anchor-bets/{id}/side-bets", s.createSideBet)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/api/admin/markets", s.createMarket)
			r.Post("/api/admin/markets/{id}/resolve", s.resolveMarket)
			r.Get("/api/admin/users", s.listUsers)
			r.Get("/api/admin/orders/{id}/events", s.listOrderEvents)
		})
	})

	return r
}

// ── Auth ─────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		jsonErr(w, engineerr.InvalidInput("email and password (min 6 chars) required"))
		return
	}

	existing, _ := s.store.GetUserByEmail(r.Context(), req.Email)
	if existing != nil {
		jsonErr(w, engineerr.New(engineerr.KindConflict, "email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, engineerr.Internal("hash password", err))
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, string(hash), model.RoleUser)
	if err != nil {
		jsonErr(w, engineerr.Internal("create user", err))
		return
	}
	if err := s.store.CreateBalance(r.Context(), user.ID, s.initialBal); err != nil {
		jsonErr(w, engineerr.Internal("create balance", err))
		return
	}

	token := s.makeToken(user.ID, user.Role)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil {
		jsonErr(w, engineerr.New(engineerr.KindForbidden, "invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		jsonErr(w, engineerr.New(engineerr.KindForbidden, "invalid credentials"))
		return
	}

	token := s.makeToken(user.ID, user.Role)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) makeToken(userID string, role model.Role) string {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(72 * time.Hour).Unix(),
	}
	t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return t
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonErr(w, engineerr.New(engineerr.KindForbidden, "missing token"))
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			jsonErr(w, engineerr.New(engineerr.KindForbidden, "invalid token"))
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonErr(w, engineerr.New(engineerr.KindForbidden, "invalid claims"))
			return
		}
		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxRole).(string)
		if role != string(model.RoleAdmin) {
			jsonErr(w, engineerr.New(engineerr.KindForbidden, "admin only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Balance ──────────────────────────────────────────

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	bal, err := s.store.GetBalance(r.Context(), uid)
	if err != nil || bal == nil {
		jsonErr(w, engineerr.NotFound("balance not found"))
		return
	}
	json200(w, bal)
}

// ── Markets ──────────────────────────────────────────

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListOpenMarkets(r.Context())
	if err != nil {
		jsonErr(w, engineerr.Internal("list markets", err))
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	json200(w, markets)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mkt, err := s.store.GetMarket(r.Context(), id)
	if err != nil || mkt == nil {
		jsonErr(w, engineerr.NotFound("market not found"))
		return
	}
	json200(w, mkt)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome := model.Outcome(r.URL.Query().Get("outcome"))
	if !outcome.Valid() {
		outcome = model.OutcomeYes
	}
	depth := 25
	if n, err := strconv.Atoi(r.URL.Query().Get("depth")); err == nil && n > 0 && n <= 200 {
		depth = n
	}
	snap, err := s.manager.GetOrderbook(r.Context(), id, outcome, depth)
	if err != nil {
		jsonErr(w, err)
		return
	}
	json200(w, snap)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
		limit = n
	}
	trades, err := s.store.ListTrades(r.Context(), id, limit)
	if err != nil {
		jsonErr(w, engineerr.Internal("list trades", err))
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	json200(w, trades)
}

// ── Orders ───────────────────────────────────────────

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	uid := r.Context().Value(ctxUserID).(string)

	var req model.PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}

	accepted, err := s.manager.SubmitOrder(r.Context(), marketID, uid, req)
	if err != nil {
		jsonErr(w, err)
		return
	}
	json200(w, accepted)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	uid := r.Context().Value(ctxUserID).(string)

	order, err := s.store.GetOrder(r.Context(), orderID)
	if err != nil || order == nil {
		jsonErr(w, engineerr.NotFound("order not found"))
		return
	}

	cancelled, err := s.manager.CancelOrder(r.Context(), order.MarketID, orderID, uid)
	if err != nil {
		jsonErr(w, err)
		return
	}
	json200(w, cancelled)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	uid := r.Context().Value(ctxUserID).(string)
	orders, err := s.store.ListUserOrders(r.Context(), marketID, uid)
	if err != nil {
		jsonErr(w, engineerr.Internal("list orders", err))
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	json200(w, orders)
}

func (s *Server) listOrderEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.store.ListOrderEvents(r.Context(), id)
	if err != nil {
		jsonErr(w, engineerr.Internal("list order events", err))
		return
	}
	json200(w, events)
}

// ── Positions ────────────────────────────────────────

func (s *Server) getMyPosition(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	uid := r.Context().Value(ctxUserID).(string)
	outcome := model.Outcome(r.URL.Query().Get("outcome"))
	if !outcome.Valid() {
		outcome = model.OutcomeYes
	}
	pos, err := s.store.GetPosition(r.Context(), marketID, uid, outcome)
	if err != nil {
		jsonErr(w, engineerr.Internal("load position", err))
		return
	}
	json200(w, pos)
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	positions, err := s.store.ListMarketPositions(r.Context(), marketID)
	if err != nil {
		jsonErr(w, engineerr.Internal("list positions", err))
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	json200(w, positions)
}

// ── Anchor bets ──────────────────────────────────────

func (s *Server) createAnchorBet(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	var req struct {
		Title      string  `json:"title"`
		RulesText  string  `json:"rules_text"`
		OpponentID *string `json:"opponent_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}
	if req.Title == "" || req.RulesText == "" {
		jsonErr(w, engineerr.InvalidInput("title and rules_text required"))
		return
	}
	ab, err := s.anchorbets.Create(r.Context(), uid, req.Title, req.RulesText, req.OpponentID)
	if err != nil {
		jsonErr(w, engineerr.Internal("create anchor bet", err))
		return
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(ab)
}

func (s *Server) listAnchorBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.anchorbets.List(r.Context())
	if err != nil {
		jsonErr(w, engineerr.Internal("list anchor bets", err))
		return
	}
	if bets == nil {
		bets = []anchorbet.AnchorBet{}
	}
	json200(w, bets)
}

func (s *Server) getAnchorBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ab, err := s.anchorbets.Get(r.Context(), id)
	if err != nil || ab == nil {
		jsonErr(w, engineerr.NotFound("anchor bet not found"))
		return
	}
	json200(w, ab)
}

func (s *Server) createSideBet(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	anchorID := chi.URLParam(r, "id")
	var req struct {
		Direction string `json:"direction"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}
	dir := anchorbet.Direction(req.Direction)
	if dir != anchorbet.DirectionFor && dir != anchorbet.DirectionAgainst {
		jsonErr(w, engineerr.InvalidInput("direction must be FOR or AGAINST"))
		return
	}
	amount, err := money.FromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		jsonErr(w, engineerr.InvalidInput("amount must be a positive decimal"))
		return
	}
	sb, err := s.anchorbets.CreateSideBet(r.Context(), anchorID, uid, dir, amount)
	if err != nil {
		jsonErr(w, engineerr.Internal("create side bet", err))
		return
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(sb)
}

// ── Admin ────────────────────────────────────────────

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug     string `json:"slug"`
		Question string `json:"question"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}
	if req.Slug == "" || req.Question == "" {
		jsonErr(w, engineerr.InvalidInput("slug and question required"))
		return
	}

	mkt := &model.Market{
		Slug: req.Slug, Question: req.Question, Category: req.Category,
		Status: model.MarketOpen, YesPrice: money.FromFloat(0.5), NoPrice: money.FromFloat(0.5),
	}
	if err := s.store.CreateMarket(r.Context(), mkt); err != nil {
		jsonErr(w, engineerr.Internal("create market", err))
		return
	}
	if err := s.manager.StartEngine(r.Context(), mkt.ID); err != nil {
		s.log.Warn("start engine after create", zap.String("marketId", mkt.ID), zap.Error(err))
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(mkt)
}

func (s *Server) resolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	adminID := r.Context().Value(ctxUserID).(string)

	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, engineerr.InvalidInput("invalid json"))
		return
	}
	outcome := model.Outcome(req.Outcome)
	if !outcome.Valid() {
		jsonErr(w, engineerr.InvalidInput("outcome must be YES or NO"))
		return
	}

	if err := s.house.Resolve(r.Context(), marketID, outcome, adminID); err != nil {
		jsonErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "resolved", "outcome": string(outcome)})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		jsonErr(w, engineerr.Internal("list users", err))
		return
	}
	json200(w, users)
}

// ── Helpers ──────────────────────────────────────────

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// jsonErr maps any error to its HTTP status via engineerr.Kind when
// possible, falling back to 500 for anything the domain layer didn't wrap.
func jsonErr(w http.ResponseWriter, err error) {
	status := 500
	msg := err.Error()
	if ee, ok := err.(*engineerr.Error); ok {
		status = ee.Kind.HTTPStatus()
		msg = ee.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
