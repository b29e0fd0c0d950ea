package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/core/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type HTTPHandler struct {
	catalog *service.CatalogService
	ledger  *service.LedgerService
	auth    *service.AuthService
}

type ErrorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        domain.User `json:"user"`
}

type CreateItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id" binding:"required"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" binding:"min=0,max=2147483647"`
	ImageURL    string          `json:"image_url"`
}

type UpdateItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	CategoryID  *string          `json:"category_id"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"`
	Quantity    *int             `json:"quantity"`
}

// PurchaseRequest may be empty; quantity then defaults to 1.
type PurchaseRequest struct {
	Quantity *int `json:"quantity"`
}

type RestockRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=1,max=2147483647"`
}

type PurchaseHTTPResponse struct {
	Message    string                `json:"message"`
	Purchase   domain.PurchaseRecord `json:"purchase"`
	TotalPrice string                `json:"total_price"`
	Item       domain.Item           `json:"item"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func NewHTTPHandler(catalog *service.CatalogService, ledger *service.LedgerService, auth *service.AuthService) *HTTPHandler {
	useJSONFieldNames()
	return &HTTPHandler{catalog: catalog, ledger: ledger, auth: auth}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.auth.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse(session))
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse(session))
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.catalog.ListItems(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *HTTPHandler) SearchItems(c *gin.Context) {
	filter := domain.ItemFilter{
		NameContains:     strings.TrimSpace(c.Query("name")),
		CategoryContains: strings.TrimSpace(c.Query("category")),
	}
	var err error
	if filter.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		writeError(c, err)
		return
	}
	if filter.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		writeError(c, err)
		return
	}

	items, err := h.catalog.SearchItems(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.catalog.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.catalog.CreateItem(c.Request.Context(), service.NewItem{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity != nil {
		writeError(c, fmt.Errorf("quantity cannot be updated, use restock: %w", domain.ErrInvalidRequest))
		return
	}
	item, err := h.catalog.UpdateItem(c.Request.Context(), c.Param("id"), domain.ItemPatch{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	if err := h.catalog.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, bindError(err))
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	identity := identityFrom(c)
	result, err := h.ledger.PurchaseOnce(c.Request.Context(), c.GetHeader(IdempotencyKeyHeader), identity.UserID, c.Param("id"), quantity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PurchaseHTTPResponse{
		Message:    "purchase successful",
		Purchase:   result.Record,
		TotalPrice: result.TotalPrice.StringFixed(2),
		Item:       result.Item,
	})
}

func (h *HTTPHandler) Restock(c *gin.Context) {
	var req RestockRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.catalog.Restock(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *HTTPHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *HTTPHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *HTTPHandler) PurchaseHistory(c *gin.Context) {
	records, err := h.ledger.History(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []domain.PurchaseRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *HTTPHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func authResponse(session *service.Session) AuthResponse {
	return AuthResponse{
		AccessToken: session.Token,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt,
		User:        session.User,
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		writeError(c, bindError(err))
		return false
	}
	return true
}

// bindError reports the first failed binding rule by its JSON field name.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%s failed %s=%s: %w", fe.Field(), fe.Tag(), fe.Param(), domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%s failed %s: %w", fe.Field(), fe.Tag(), domain.ErrInvalidRequest)
	}
	return fmt.Errorf("invalid request body: %w", domain.ErrInvalidRequest)
}

var registerFieldNames sync.Once

// useJSONFieldNames makes gin's validator name fields by their json tag.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}

func queryDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal number: %w", key, domain.ErrInvalidRequest)
	}
	return &d, nil
}

func httpStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock, domain.KindConflict, domain.KindAlreadyExists, domain.KindDuplicateRequest:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(httpStatus(kind), ErrorResponse{
		Error: ErrorBody{Kind: kind, Message: domain.PublicMessage(err)},
	})
}
