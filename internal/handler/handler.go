package handler

import (
	"context"
	"strconv"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/model"
	"sitegen/internal/service"
	"sitegen/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AccountService interface {
	Balance(ctx context.Context, caller *identity.Principal) (int64, error)
	BalanceFor(ctx context.Context, caller *identity.Principal, userID string) (int64, error)
	Register(ctx context.Context, caller *identity.Principal) (*model.Account, bool, error)
	Adjust(ctx context.Context, caller *identity.Principal, userID string, delta int64, reason string) (int64, error)
	Transactions(ctx context.Context, caller *identity.Principal, page, pageSize int) ([]*model.CreditTransaction, int64, error)
}

type GenerationService interface {
	Generate(ctx context.Context, caller *identity.Principal, in service.GenerateInput) (*service.GenerateResult, error)
}

type WebsiteService interface {
	Get(ctx context.Context, caller *identity.Principal, id string) (*model.Website, error)
	List(ctx context.Context, caller *identity.Principal, page, pageSize int) ([]*model.WebsiteSummary, int64, error)
}

type PricingService interface {
	Quote(credits int64) (*service.Quote, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handler's collaborators. A nil field means the component
// was not configured; routes that need it answer 503.
type Deps struct {
	Accounts   AccountService
	Generation GenerationService
	Websites   WebsiteService
	Pricing    PricingService
	Verifier   identity.Verifier
	Storage    Pinger
	Readiness  config.Readiness
	Log        logrus.FieldLogger
}

type Handler struct {
	accounts   AccountService
	generation GenerationService
	websites   WebsiteService
	pricing    PricingService
	verifier   identity.Verifier
	storage    Pinger
	readiness  config.Readiness
	log        logrus.FieldLogger
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		accounts:   d.Accounts,
		generation: d.Generation,
		websites:   d.Websites,
		pricing:    d.Pricing,
		verifier:   d.Verifier,
		storage:    d.Storage,
		readiness:  d.Readiness,
		log:        log,
	}
}

// Health reports that the process is up.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// ConfigHealth reports which dependencies are configured and whether
// storage answers. It never echoes configured values.
// GET /api/v1/health/config
func (h *Handler) ConfigHealth(c *gin.Context) {
	storage := gin.H{"configured": h.storage != nil, "reachable": false}
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			h.log.WithError(err).Warn("storage ping failed")
		} else {
			storage["reachable"] = true
		}
	}

	response.Success(c, gin.H{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.readiness,
		"storage":     storage,
	})
}

// GetCredits is the balance read for the authenticated caller.
// GET /api/v1/credits
func (h *Handler) GetCredits(c *gin.Context) {
	if h.accounts == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	credits, err := h.accounts.Balance(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"credits": credits})
}

type GenerateRequest struct {
	Prompt        string `json:"prompt" binding:"required"`
	BaseWebsiteID string `json:"base_website_id"`
}

// Generate runs one credit-gated generation.
// POST /api/v1/generate
func (h *Handler) Generate(c *gin.Context) {
	if h.generation == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "prompt is required")
		return
	}

	res, err := h.generation.Generate(c.Request.Context(), principal(c), service.GenerateInput{
		Prompt:        req.Prompt,
		BaseWebsiteID: req.BaseWebsiteID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"website":          res.Website,
		"remainingCredits": res.RemainingCredits,
	})
}

// RegisterAccount creates the caller's ledger row with the signup grant.
// POST /api/v1/accounts
func (h *Handler) RegisterAccount(c *gin.Context) {
	if h.accounts == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	account, created, err := h.accounts.Register(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"user_id": account.UserID, "credits": account.Credits, "created": created}
	if created {
		response.Created(c, body)
		return
	}
	response.Success(c, body)
}

// GetAccountCredits reads one account's balance for its owner or an admin.
// GET /api/v1/accounts/:user_id/credits
func (h *Handler) GetAccountCredits(c *gin.Context) {
	if h.accounts == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	userID := c.Param("user_id")
	credits, err := h.accounts.BalanceFor(c.Request.Context(), principal(c), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": userID, "credits": credits})
}

type AdjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustCredits is the administrative balance change. The admin check runs
// before the body is validated so non-admins always get 403.
// POST /api/v1/accounts/:user_id/credits
func (h *Handler) AdjustCredits(c *gin.Context) {
	if h.accounts == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	caller := principal(c)

	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil && caller != nil && caller.IsAdmin {
		response.ParamError(c, "delta must be an integer")
		return
	}

	after, err := h.accounts.Adjust(c.Request.Context(), caller, c.Param("user_id"), req.Delta, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": c.Param("user_id"), "credits": after})
}

// ListTransactions pages through the caller's credit ledger, newest first.
// GET /api/v1/credits/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	if h.accounts == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	page, pageSize := pageParams(c)
	items, total, err := h.accounts.Transactions(c.Request.Context(), principal(c), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items, "total": total, "page": page, "page_size": pageSize})
}

// ListWebsites pages through the caller's generated sites without their HTML.
// GET /api/v1/websites?page=1&page_size=20
func (h *Handler) ListWebsites(c *gin.Context) {
	if h.websites == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	page, pageSize := pageParams(c)
	items, total, err := h.websites.List(c.Request.Context(), principal(c), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items, "total": total, "page": page, "page_size": pageSize})
}

// GetWebsite returns one generated site with its HTML.
// GET /api/v1/websites/:id
func (h *Handler) GetWebsite(c *gin.Context) {
	if h.websites == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	w, err := h.websites.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, w)
}

// Pricing quotes a credit purchase. Payment itself is not implemented.
// GET /api/v1/credits/pricing?credits=10
func (h *Handler) Pricing(c *gin.Context) {
	if h.pricing == nil {
		response.ServiceUnavailable(c, service.ErrServiceUnavailable.Error())
		return
	}
	credits, err := strconv.ParseInt(c.DefaultQuery("credits", "10"), 10, 64)
	if err != nil {
		response.ParamError(c, "credits must be an integer")
		return
	}
	quote, err := h.pricing.Quote(credits)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, quote)
}

func principal(c *gin.Context) *identity.Principal {
	return identity.PrincipalFrom(c.Request.Context())
}

// pageParams reads page and page_size; the service clamps them.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
