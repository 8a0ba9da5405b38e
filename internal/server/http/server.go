// Package httpserver exposes the engine's JSON API over chi.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/market"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
	"github.com/casebros/case-engine/internal/service"
	"github.com/casebros/case-engine/internal/wear"
)

// BatchResolver is the slice of the market resolver the catalog handlers use.
type BatchResolver interface {
	GetBatch(ctx context.Context, keys []string, behavior market.Behavior) []*market.Info
}

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	opens     service.OpenService
	inventory service.InventoryService
	bonus     service.BonusService
	catalog   repository.CatalogRepository
	users     repository.UserRepository
	prices    BatchResolver
	signKey   []byte
	log       *zap.Logger
}

// New constructs the HTTP server with injected services.
func New(
	auth service.AuthService,
	opens service.OpenService,
	inventory service.InventoryService,
	bonus service.BonusService,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	prices BatchResolver,
	signKey []byte,
	log *zap.Logger,
) *Server {
	return &Server{
		auth: auth, opens: opens, inventory: inventory, bonus: bonus,
		catalog: catalog, users: users, prices: prices,
		signKey: signKey, log: log,
	}
}

// Router builds the route tree with logging, recovery and JWT auth applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{slug}", s.handleCaseDetail)

		r.Group(func(r chi.Router) {
			r.Use(Auth(s.signKey))
			r.Get("/me", s.handleMe)
			r.Post("/cases/{slug}/open", s.handleOpen)
			r.Get("/opens/{id}", s.handleAudit)
			r.Get("/inventory", s.handleInventory)
			r.Post("/inventory/{id}/sell", s.handleSell)
			r.Get("/bonus", s.handleBonusState)
			r.Post("/bonus/claim", s.handleBonusClaim)
		})
	})

	return r
}

// --- Auth ---

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "empty username/password")
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	tok, u, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt,
		"user_id":      u.ID.String(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	u, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":            u.ID.String(),
		"username":           u.Username,
		"gems_cents":         u.GemsCents,
		"server_seed_hash":   u.ServerSeedHash,
		"nonce":              u.Nonce,
		"daily_earned_cents": u.DailyEarnedCents,
	})
}

// --- Catalog ---

type caseView struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	KeyPriceCents int64  `json:"key_price_cents"`
	PriceSource   string `json:"price_source,omitempty"`
}

func priceKey(c *model.Case) string {
	if c.MarketHashName != "" {
		return c.MarketHashName
	}
	return c.Name
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.catalog.ListActiveCases(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	keys := make([]string, len(cases))
	for i := range cases {
		keys[i] = priceKey(&cases[i])
	}
	// Stale prices are fine for a storefront; refreshes happen behind the
	// response.
	infos := s.prices.GetBatch(r.Context(), keys, market.StaleWhileRevalidate)

	out := make([]caseView, len(cases))
	for i := range cases {
		out[i] = caseView{
			Slug:          cases[i].Slug,
			Name:          cases[i].Name,
			PriceCents:    cases[i].PriceCents,
			KeyPriceCents: cases[i].KeyPriceCents,
		}
		if i < len(infos) && infos[i] != nil && infos[i].PriceCents != nil {
			out[i].PriceCents = *infos[i].PriceCents
			out[i].PriceSource = infos[i].Source
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": out})
}

type caseItemView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Rarity      string `json:"rarity"`
	PriceCents  int64  `json:"price_cents"`
	PriceSource string `json:"price_source,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Weight      int64  `json:"weight"`
}

func itemPriceKey(it *model.Item) string {
	base := it.MarketHashNameBase
	if base == "" {
		base = it.Name
	}
	return wear.MarketHashName(base, wear.DefaultTier, false)
}

func (s *Server) handleCaseDetail(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	c, err := s.catalog.GetCaseBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rows, err := s.catalog.ListCaseItems(r.Context(), c.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	keys := make([]string, len(rows))
	for i := range rows {
		keys[i] = itemPriceKey(&rows[i].Item)
	}
	infos := s.prices.GetBatch(r.Context(), keys, market.StaleWhileRevalidate)

	items := make([]caseItemView, len(rows))
	var total int64
	for _, row := range rows {
		total += row.Weight
	}
	for i, row := range rows {
		items[i] = caseItemView{
			ID:         row.ID,
			Name:       row.Name,
			Rarity:     row.Rarity,
			PriceCents: row.PriceCents,
			ImageURL:   row.ImageURL,
			Weight:     row.Weight,
		}
		if i < len(infos) && infos[i] != nil && infos[i].PriceCents != nil {
			items[i].PriceCents = *infos[i].PriceCents
			items[i].PriceSource = infos[i].Source
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":            c.Slug,
		"name":            c.Name,
		"price_cents":     c.PriceCents,
		"key_price_cents": c.KeyPriceCents,
		"active":          c.Active,
		"total_weight":    total,
		"items":           items,
	})
}

// --- Opens ---

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	receipt, err := s.opens.Open(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open_id":          receipt.OpenID.String(),
		"inventory_id":     receipt.InventoryID.String(),
		"case":             receipt.CaseSlug,
		"item_name":        receipt.ItemName,
		"rarity":           receipt.Rarity,
		"wear_tier":        receipt.WearTier,
		"wear_short":       receipt.WearShort,
		"wear_float":       receipt.WearFloat,
		"stattrak":         receipt.StatTrak,
		"market_hash_name": receipt.MarketHashName,
		"image_url":        receipt.ImageURL,
		"value_cents":      receipt.ValueCents,
		"spent_cents":      receipt.SpentCents,
		"earned_cents":     receipt.EarnedCents,
		"balance_cents":    receipt.BalanceCents,
		"mastery_xp":       receipt.MasteryXP,
		"mastery_level":    receipt.MasteryLevel,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	openID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	o, err := s.opens.Audit(r.Context(), userID, openID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open_id":          o.ID.String(),
		"case_id":          o.CaseID,
		"item_id":          o.ItemID,
		"server_seed_hash": o.ServerSeedHash,
		"server_seed":      o.ServerSeed,
		"nonce":            o.Nonce,
		"event_time_ms":    o.EventTimeMs,
		"roll":             o.Roll,
		"wear_tier":        o.WearTier,
		"wear_float":       o.WearFloat,
		"spent_cents":      o.SpentCents,
		"earned_cents":     o.EarnedCents,
		"modifiers":        json.RawMessage(o.Modifiers),
		"created_at":       o.CreatedAt.Format(time.RFC3339),
	})
}

// --- Inventory ---

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	items, err := s.inventory.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{
			"id":               it.ID.String(),
			"item_name":        it.ItemName,
			"rarity":           it.Rarity,
			"wear_tier":        it.WearTier,
			"wear_float":       it.WearFloat,
			"market_hash_name": it.MarketHashName,
			"image_url":        it.ImageURL,
			"value_cents":      it.ValueCents,
			"sold":             it.Sold,
			"obtained_at":      it.ObtainedAt.Format(time.RFC3339),
		}
		if it.SoldForCents != nil {
			out[i]["sold_for_cents"] = *it.SoldForCents
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	invID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	res, err := s.inventory.Sell(r.Context(), userID, invID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sold_for_cents": res.SoldForCents,
		"balance_cents":  res.NewBalanceCents,
	})
}

// --- Bonus ---

func (s *Server) handleBonusState(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	st, err := s.bonus.State(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBonusClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no auth")
		return
	}
	c, err := s.bonus.Claim(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
