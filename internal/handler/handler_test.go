package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/model"
	"sitegen/internal/repository"
	"sitegen/internal/service"
	"sitegen/pkg/logger"
	"sitegen/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAccounts backs the real AccountService in these tests.
type memAccounts struct {
	credits map[string]int64
	err     error
}

func (m *memAccounts) get(userID string) (*model.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.credits[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &model.Account{UserID: userID, Credits: c}, nil
}

func (m *memAccounts) GetByUserID(_ context.Context, userID string) (*model.Account, error) {
	return m.get(userID)
}

func (m *memAccounts) GetByUserIDFromPrimary(_ context.Context, userID string) (*model.Account, error) {
	return m.get(userID)
}

func (m *memAccounts) GetOrCreate(_ context.Context, userID string, initial int64) (*model.Account, bool, error) {
	if c, ok := m.credits[userID]; ok {
		return &model.Account{UserID: userID, Credits: c}, false, nil
	}
	m.credits[userID] = initial
	return &model.Account{UserID: userID, Credits: initial}, true, nil
}

func (m *memAccounts) Charge(ctx context.Context, userID, _ string, amount int64) (int64, error) {
	return m.Adjust(ctx, userID, -amount, "")
}

func (m *memAccounts) Adjust(_ context.Context, userID string, delta int64, _ string) (int64, error) {
	c, ok := m.credits[userID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	if c+delta < 0 {
		return 0, repository.ErrInsufficientCredit
	}
	m.credits[userID] = c + delta
	return c + delta, nil
}

func (m *memAccounts) ListByUserID(_ context.Context, userID string, _, _ int) ([]*model.CreditTransaction, int64, error) {
	return []*model.CreditTransaction{{UserID: userID, Amount: -1, Type: model.TransactionTypeGeneration}}, 1, nil
}

type memWebsites map[string]*model.Website

func (m memWebsites) CreateWithEvent(_ context.Context, w *model.Website, _ *model.OutboxMessage) error {
	m[w.ID] = w
	return nil
}

func (m memWebsites) GetByID(_ context.Context, id string) (*model.Website, error) {
	w, ok := m[id]
	if !ok {
		return nil, repository.ErrWebsiteNotFound
	}
	return w, nil
}

func (m memWebsites) ListByUserID(_ context.Context, userID string, _, _ int) ([]*model.WebsiteSummary, int64, error) {
	var out []*model.WebsiteSummary
	for _, w := range m {
		if w.UserID == userID {
			out = append(out, &model.WebsiteSummary{ID: w.ID, Prompt: w.Prompt, CreatedAt: w.CreatedAt})
		}
	}
	return out, int64(len(out)), nil
}

type stubGeneration struct {
	result *service.GenerateResult
	err    error
	got    service.GenerateInput
	calls  int
}

func (s *stubGeneration) Generate(_ context.Context, _ *identity.Principal, in service.GenerateInput) (*service.GenerateResult, error) {
	s.calls++
	s.got = in
	return s.result, s.err
}

type tokenVerifier struct {
	principals map[string]*identity.Principal
	down       bool
}

func (v *tokenVerifier) Verify(_ context.Context, token string) (*identity.Principal, error) {
	if v.down {
		return nil, identity.ErrUnavailable
	}
	p, ok := v.principals[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return p, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router     *gin.Engine
	accounts   *memAccounts
	websites   memWebsites
	generation *stubGeneration
	verifier   *tokenVerifier
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	env := &testEnv{
		accounts: &memAccounts{credits: map[string]int64{"u-1": 3, "u-2": 0}},
		websites: memWebsites{
			"w-1": {ID: "w-1", UserID: "u-1", Prompt: "a bakery", HTML: "<html></html>", CreatedAt: time.Now()},
		},
		generation: &stubGeneration{},
		verifier: &tokenVerifier{principals: map[string]*identity.Principal{
			"tok-1":     {ID: "u-1"},
			"tok-2":     {ID: "u-2"},
			"tok-new":   {ID: "u-new"},
			"tok-admin": {ID: "admin", IsAdmin: true},
		}},
	}
	business := &config.BusinessConfig{SignupCredits: 3, PricePerCredit: 0.02, Currency: "GBP"}

	deps := Deps{
		Accounts:   service.NewAccountService(env.accounts, env.accounts, business, log),
		Generation: env.generation,
		Websites:   service.NewWebsiteService(env.websites),
		Pricing:    service.NewPricingService(business),
		Verifier:   env.verifier,
		Storage:    stubPinger{},
		Readiness:  config.Readiness{Storage: true, Identity: true, Generator: true},
		Log:        log,
	}
	if mutate != nil {
		mutate(&deps)
	}

	env.router = SetupRouter(NewHandler(deps), &config.ServerConfig{Mode: gin.TestMode, CORSOrigins: []string{"*"}}, log)
	return env
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestConfigHealth_ReportsReadinessWithoutValues(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Storage = stubPinger{err: errors.New("dial tcp: refused")} })

	w := env.do(http.MethodGet, "/api/v1/health/config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	envBody := body["environment"].(map[string]interface{})
	assert.Equal(t, true, envBody["storage"])
	assert.Equal(t, false, envBody["kafka"])
	storage := body["storage"].(map[string]interface{})
	assert.Equal(t, true, storage["configured"])
	assert.Equal(t, false, storage["reachable"])
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestGetCredits(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/credits", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["credits"])
}

func TestGetCredits_Errors(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		mutate func(*Deps)
		env    func(*testEnv)
		status int
		code   int
	}{
		{name: "no token", status: http.StatusUnauthorized, code: response.CodeUnauthorized},
		{name: "bad token", token: "nope", status: http.StatusUnauthorized, code: response.CodeUnauthorized},
		{name: "unknown user", token: "tok-new", status: http.StatusNotFound, code: response.CodeAccountNotFound},
		{
			name:   "identity down",
			token:  "tok-1",
			env:    func(e *testEnv) { e.verifier.down = true },
			status: http.StatusServiceUnavailable,
			code:   response.CodeServiceUnavailable,
		},
		{
			name:   "no verifier",
			token:  "tok-1",
			mutate: func(d *Deps) { d.Verifier = nil },
			status: http.StatusServiceUnavailable,
			code:   response.CodeServiceUnavailable,
		},
		{
			name:   "no storage",
			token:  "tok-1",
			mutate: func(d *Deps) { d.Accounts = nil },
			status: http.StatusServiceUnavailable,
			code:   response.CodeServiceUnavailable,
		},
		{
			name:   "storage error",
			token:  "tok-1",
			env:    func(e *testEnv) { e.accounts.err = errors.New("connection reset") },
			status: http.StatusInternalServerError,
			code:   response.CodeStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate)
			if tt.env != nil {
				tt.env(env)
			}
			w := env.do(http.MethodGet, "/api/v1/credits", tt.token, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, float64(tt.code), decode(t, w)["code"])
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestGenerate_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	parent := "w-1"
	env.generation.result = &service.GenerateResult{
		Website: &model.Website{
			ID:        "w-2",
			UserID:    "u-1",
			ParentID:  &parent,
			Prompt:    "make it blue",
			HTML:      "<html>blue</html>",
			CreatedAt: time.Now(),
		},
		RemainingCredits: 2,
		Settled:          true,
	}

	w := env.do(http.MethodPost, "/api/v1/generate", "tok-1", gin.H{"prompt": "make it blue", "base_website_id": "w-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(2), body["remainingCredits"])
	site := body["website"].(map[string]interface{})
	assert.Equal(t, "w-2", site["id"])
	assert.Equal(t, "w-1", site["parent_id"])
	assert.Equal(t, "<html>blue</html>", site["html"])
	assert.NotContains(t, site, "user_id")

	assert.Equal(t, "w-1", env.generation.got.BaseWebsiteID)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   interface{}
		err    error
		mutate func(*Deps)
		status int
		code   int
		calls  int
	}{
		{name: "missing prompt", body: gin.H{}, status: http.StatusBadRequest, code: response.CodeParamError},
		{name: "malformed body", body: "{", status: http.StatusBadRequest, code: response.CodeParamError},
		{name: "insufficient credit", body: gin.H{"prompt": "x"}, err: service.ErrInsufficientCredit, status: http.StatusPaymentRequired, code: response.CodeInsufficientCredit, calls: 1},
		{name: "backend down", body: gin.H{"prompt": "x"}, err: service.ErrBackendUnavailable, status: http.StatusInternalServerError, code: response.CodeBackendUnavailable, calls: 1},
		{name: "empty content", body: gin.H{"prompt": "x"}, err: service.ErrGenerationFailed, status: http.StatusInternalServerError, code: response.CodeGenerationFailed, calls: 1},
		{name: "persistence", body: gin.H{"prompt": "x"}, err: service.ErrPersistenceFailed, status: http.StatusInternalServerError, code: response.CodePersistenceFailed, calls: 1},
		{name: "foreign base", body: gin.H{"prompt": "x", "base_website_id": "w-9"}, err: service.ErrPermissionDenied, status: http.StatusForbidden, code: response.CodeForbidden, calls: 1},
		{name: "no generator", body: gin.H{"prompt": "x"}, mutate: func(d *Deps) { d.Generation = nil }, status: http.StatusServiceUnavailable, code: response.CodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate)
			env.generation.err = tt.err

			w := env.do(http.MethodPost, "/api/v1/generate", "tok-1", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, float64(tt.code), decode(t, w)["code"])
			assert.Equal(t, tt.calls, env.generation.calls)
		})
	}
}

func TestGenerate_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/generate", "", gin.H{"prompt": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, env.generation.calls)
}

func TestRegisterAccount(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/accounts", "tok-new", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["credits"])

	w = env.do(http.MethodPost, "/api/v1/accounts", "tok-new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])
}

func TestAccountCredits_OwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/accounts/u-1/credits", "tok-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/accounts/u-1/credits", "tok-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/accounts/u-1/credits", "tok-admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["credits"])
}

func TestAdjustCredits(t *testing.T) {
	t.Run("non-admin refused whatever the body", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/v1/accounts/u-2/credits", "tok-2", "not json")
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = env.do(http.MethodPost, "/api/v1/accounts/u-2/credits", "tok-2", gin.H{"delta": 100})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, int64(0), env.accounts.credits["u-2"])
	})

	t.Run("admin grants credits", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/v1/accounts/u-2/credits", "tok-admin", gin.H{"delta": 5, "reason": "refund"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(5), decode(t, w)["credits"])
		assert.Equal(t, int64(5), env.accounts.credits["u-2"])
	})

	t.Run("admin cannot overdraw", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/v1/accounts/u-1/credits", "tok-admin", gin.H{"delta": -4})
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, int64(3), env.accounts.credits["u-1"])
	})

	t.Run("admin bad payload", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/v1/accounts/u-1/credits", "tok-admin", gin.H{"delta": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(http.MethodPost, "/api/v1/accounts/u-1/credits", "tok-admin", "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWebsites(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/websites/w-1", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html></html>", decode(t, w)["html"])

	w = env.do(http.MethodGet, "/api/v1/websites/w-1", "tok-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/websites/missing", "tok-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(response.CodeWebsiteNotFound), decode(t, w)["code"])

	w = env.do(http.MethodGet, "/api/v1/websites?page=1&page_size=10", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.NotContains(t, w.Body.String(), "<html>")
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/credits/transactions?page=2&page_size=10", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(2), body["page"])
	assert.Len(t, body["items"], 1)

	w = env.do(http.MethodGet, "/api/v1/credits/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPricing(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/credits/pricing?credits=50", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["quote"])
	assert.Equal(t, "GBP", body["currency"])

	for _, q := range []string{"0", "1001", "abc"} {
		w = env.do(http.MethodGet, "/api/v1/credits/pricing?credits="+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/generate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, want := range map[string]string{
		"https://app.example.com":  "https://app.example.com",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(logger.Discard()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/health", "", nil)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sitegen_http_requests_total")
}
