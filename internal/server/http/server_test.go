package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/market"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
	"github.com/casebros/case-engine/internal/service"
)

var signKey = []byte("test-secret")

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, username, _ string) (string, error) {
	if username == "taken" {
		return "", errs.ErrAlreadyExists
	}
	return uuid.Must(uuid.NewV4()).String(), nil
}

func (stubAuth) LoginWithIP(_ context.Context, username, password, _ string) (model.Tokens, model.User, error) {
	if password != "pw" {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	return model.Tokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		model.User{ID: uuid.Must(uuid.NewV4()), Username: username}, nil
}

type stubOpens struct {
	receipt *service.OpenReceipt
	openErr error
	audit   *model.Open
}

func (s *stubOpens) Open(_ context.Context, _ uuid.UUID, _ string) (*service.OpenReceipt, error) {
	return s.receipt, s.openErr
}

func (s *stubOpens) Audit(_ context.Context, _, _ uuid.UUID) (*model.Open, error) {
	if s.audit == nil {
		return nil, errs.ErrNotFound
	}
	return s.audit, nil
}

type stubInventory struct {
	items   []model.InventoryItem
	sellRes *repository.SellResult
	sellErr error
}

func (s *stubInventory) List(context.Context, uuid.UUID) ([]model.InventoryItem, error) {
	return s.items, nil
}

func (s *stubInventory) Sell(context.Context, uuid.UUID, uuid.UUID) (*repository.SellResult, error) {
	return s.sellRes, s.sellErr
}

type stubBonus struct{}

func (stubBonus) State(context.Context, uuid.UUID) (*service.BonusState, error) {
	return &service.BonusState{CanClaim: true}, nil
}

func (stubBonus) Claim(context.Context, uuid.UUID) (*service.BonusClaim, error) {
	return &service.BonusClaim{AmountCents: 300, NewBalanceCents: 1300}, nil
}

type stubCatalog struct{}

func (stubCatalog) ListActiveCases(context.Context) ([]model.Case, error) {
	return []model.Case{
		{ID: 1, Slug: "fever-case", Name: "Fever Case", PriceCents: 1000, KeyPriceCents: 200, MarketHashName: "Fever Case", Active: true},
	}, nil
}

func (stubCatalog) GetCaseBySlug(_ context.Context, slug string) (*model.Case, error) {
	if slug != "fever-case" {
		return nil, errs.ErrNotFound
	}
	return &model.Case{ID: 1, Slug: "fever-case", Name: "Fever Case", PriceCents: 1000, KeyPriceCents: 200, Active: true}, nil
}

func (stubCatalog) ListCaseItems(context.Context, int64) ([]model.CaseItem, error) {
	return []model.CaseItem{
		{Item: model.Item{ID: 11, Name: "P250 | Cyber Shell", Rarity: model.RarityMilSpec, PriceCents: 400}, Weight: 95},
		{Item: model.Item{ID: 12, Name: "AK-47 | Night Rail", Rarity: model.RarityCovert, PriceCents: 9000}, Weight: 5},
	}, nil
}

type stubUsers struct{ u *model.User }

func (s *stubUsers) Create(context.Context, *model.User, []byte) error { return nil }
func (s *stubUsers) GetByID(context.Context, uuid.UUID) (*model.User, error) {
	if s.u == nil {
		return nil, errs.ErrNotFound
	}
	return s.u, nil
}
func (s *stubUsers) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errs.ErrNotFound
}
func (s *stubUsers) ClaimBonus(context.Context, uuid.UUID, int64, time.Duration, time.Time, []byte) (int64, error) {
	return 0, errs.ErrNotFound
}

type stubPrices struct{ quotes map[string]int64 }

func (s *stubPrices) GetBatch(_ context.Context, keys []string, _ market.Behavior) []*market.Info {
	out := make([]*market.Info, len(keys))
	for i, k := range keys {
		if p, ok := s.quotes[k]; ok {
			v := p
			out[i] = &market.Info{MarketHashName: k, PriceCents: &v, Source: "cache"}
		}
	}
	return out
}

func newTestRouter(t *testing.T, opens *stubOpens, inv *stubInventory, users *stubUsers) http.Handler {
	t.Helper()
	srv := New(stubAuth{}, opens, inv, stubBonus{}, stubCatalog{}, users,
		&stubPrices{quotes: map[string]int64{
			"Fever Case":                        1111,
			"AK-47 | Night Rail (Field-Tested)": 8500,
		}}, signKey, zap.NewNop())
	return srv.Router()
}

func bearerFor(t *testing.T, id uuid.UUID) string {
	t.Helper()
	return "Bearer " + makeJWT(t, id.String(), signKey, jwt.SigningMethodHS256, time.Now(), time.Minute)
}

func doJSON(t *testing.T, h http.Handler, method, path, auth string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, &stubUsers{})

	rec, body := doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, body["user_id"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/register", "", map[string]string{"username": "taken", "password": "pw"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, body = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tok", body["access_token"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "bad"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListCases_MergesLivePrices(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, &stubUsers{})

	rec, body := doJSON(t, h, http.MethodGet, "/api/cases", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cases := body["cases"].([]any)
	require.Len(t, cases, 1)
	first := cases[0].(map[string]any)
	require.Equal(t, float64(1111), first["price_cents"])
	require.Equal(t, "cache", first["price_source"])
}

func TestCaseDetail(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, &stubUsers{})

	rec, body := doJSON(t, h, http.MethodGet, "/api/cases/fever-case", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(100), body["total_weight"])
	items := body["items"].([]any)
	require.Len(t, items, 2)

	// Second item has a cached quote keyed by its default-tier hash name.
	ak := items[1].(map[string]any)
	require.Equal(t, float64(8500), ak["price_cents"])
	require.Equal(t, "cache", ak["price_source"])
	// First item has no quote and keeps its static price.
	p250 := items[0].(map[string]any)
	require.Equal(t, float64(400), p250["price_cents"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/cases/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	opens := &stubOpens{receipt: &service.OpenReceipt{
		OpenID:      uuid.Must(uuid.NewV4()),
		InventoryID: uuid.Must(uuid.NewV4()),
		CaseSlug:    "fever-case",
		ItemName:    "AK-47 | Night Rail",
		SpentCents:  1200,
		EarnedCents: 250,
	}}
	h := newTestRouter(t, opens, &stubInventory{}, &stubUsers{})

	rec, _ := doJSON(t, h, http.MethodPost, "/api/cases/fever-case/open", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := doJSON(t, h, http.MethodPost, "/api/cases/fever-case/open", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "AK-47 | Night Rail", body["item_name"])
	require.Equal(t, float64(1200), body["spent_cents"])

	opens.openErr = errs.ErrInsufficientBalance
	rec, _ = doJSON(t, h, http.MethodPost, "/api/cases/fever-case/open", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	opens.openErr = errs.ErrSourceInactive
	rec, _ = doJSON(t, h, http.MethodPost, "/api/cases/fever-case/open", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuditEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	opens := &stubOpens{audit: &model.Open{
		ID:             uuid.Must(uuid.NewV4()),
		UserID:         userID,
		ServerSeedHash: "hash",
		ServerSeed:     "seed",
		Nonce:          3,
		Roll:           123456,
	}}
	h := newTestRouter(t, opens, &stubInventory{}, &stubUsers{})

	rec, body := doJSON(t, h, http.MethodGet, "/api/opens/"+opens.audit.ID.String(), bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "seed", body["server_seed"])
	require.Equal(t, float64(3), body["nonce"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/opens/not-a-uuid", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	inv := &stubInventory{sellRes: &repository.SellResult{SoldForCents: 3000, NewBalanceCents: 4000}}
	h := newTestRouter(t, &stubOpens{}, inv, &stubUsers{})

	invID := uuid.Must(uuid.NewV4())
	rec, body := doJSON(t, h, http.MethodPost, "/api/inventory/"+invID.String()+"/sell", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(3000), body["sold_for_cents"])

	inv.sellRes = nil
	inv.sellErr = errs.ErrAlreadySold
	rec, _ = doJSON(t, h, http.MethodPost, "/api/inventory/"+invID.String()+"/sell", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestBonusEndpoints(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, &stubUsers{})

	rec, body := doJSON(t, h, http.MethodGet, "/api/bonus", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["can_claim"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/bonus/claim", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(300), body["amount_cents"])
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	users := &stubUsers{u: &model.User{ID: userID, Username: "alice", GemsCents: 1500, ServerSeedHash: "h"}}
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, users)

	rec, body := doJSON(t, h, http.MethodGet, "/api/me", bearerFor(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", body["username"])
	require.Equal(t, float64(1500), body["gems_cents"])
	require.Equal(t, "h", body["server_seed_hash"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, &stubOpens{}, &stubInventory{}, &stubUsers{})
	rec, body := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}
