// Package rest exposes the admission, order, ledger, and pricing services
// over HTTP with gin, mirroring the teacher's interfaces/http handler
// shape: a single Handler struct for every resource, RegisterRoutes wiring
// the group, thin methods that bind, delegate, and envelope the result.
package rest

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/simtrading/internal/admission"
	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/httpx"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
)

// Handler serves the trading HTTP surface.
type Handler struct {
	admission *admission.Service
	ledger    *ledger.Ledger
	orders    *order.Store
	oracle    *oracle.Oracle
	cal       *calendar.Calendar
}

// New builds a Handler from its collaborators.
func New(a *admission.Service, l *ledger.Ledger, orders *order.Store, o *oracle.Oracle, cal *calendar.Calendar) *Handler {
	return &Handler{admission: a, ledger: l, orders: orders, oracle: o, cal: cal}
}

// RegisterRoutes mounts every endpoint under router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/orders/buy", h.SubmitBuy)
		api.POST("/orders/sell", h.SubmitSell)
		api.GET("/orders/:orderId", h.GetOrder)
		api.GET("/accounts/:userId/balance", h.GetBalance)
		api.GET("/prices/:ticker", h.GetPrice)
		api.GET("/market/status", h.GetMarketStatus)
	}
}

// submitOrderRequest is the shared body for buy and sell submissions.
type submitOrderRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Ticker   string `json:"ticker" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
	Price    *int64 `json:"price"`
}

type submitOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// SubmitBuy handles POST /orders/buy.
func (h *Handler) SubmitBuy(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, errs.Wrap(errs.InvalidArgument, "%s", err.Error()))
		return
	}

	result, err := h.admission.SubmitBuy(httpx.RequestContext(c), req.UserID, req.Ticker, req.Quantity, req.Price)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	httpx.Created(c, submitOrderResponse{OrderID: result.OrderID, Status: string(result.Status)})
}

// SubmitSell handles POST /orders/sell.
func (h *Handler) SubmitSell(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, errs.Wrap(errs.InvalidArgument, "%s", err.Error()))
		return
	}

	result, err := h.admission.SubmitSell(httpx.RequestContext(c), req.UserID, req.Ticker, req.Quantity, req.Price)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	httpx.Created(c, submitOrderResponse{OrderID: result.OrderID, Status: string(result.Status)})
}

type orderResponse struct {
	OrderID    string `json:"orderId"`
	Side       string `json:"side"`
	Ticker     string `json:"ticker"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
	RetryCount int    `json:"retryCount"`
}

// GetOrder handles GET /orders/:orderId.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(httpx.RequestContext(c), c.Param("orderId"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	httpx.OK(c, orderResponse{
		OrderID:    o.OrderID,
		Side:       string(o.Side),
		Ticker:     o.Ticker,
		Price:      o.Price,
		Quantity:   o.Quantity,
		Status:     string(o.Status),
		RetryCount: o.RetryCount,
	})
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

// GetBalance handles GET /accounts/:userId/balance. An account is created
// on first access, mirroring admission's own lazy account provisioning.
func (h *Handler) GetBalance(c *gin.Context) {
	ctx := httpx.RequestContext(c)
	account, err := h.ledger.CreateAccount(ctx, c.Param("userId"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	balance, err := h.ledger.Balance(ctx, account.AccountID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	httpx.OK(c, balanceResponse{AccountID: account.AccountID, Balance: balance})
}

type priceResponse struct {
	Ticker       string `json:"ticker"`
	LastPrice    int64  `json:"lastPrice"`
	IsMarketOpen bool   `json:"isMarketOpen"`
}

// GetPrice handles GET /prices/:ticker.
func (h *Handler) GetPrice(c *gin.Context) {
	ticker := c.Param("ticker")
	price, err := h.oracle.CurrentPrice(httpx.RequestContext(c), ticker)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	httpx.OK(c, priceResponse{Ticker: ticker, LastPrice: price, IsMarketOpen: h.cal.IsOpenNow()})
}

type marketStatusResponse struct {
	IsOpen   bool      `json:"isOpen"`
	NextOpen time.Time `json:"nextOpen"`
}

// GetMarketStatus handles GET /market/status.
func (h *Handler) GetMarketStatus(c *gin.Context) {
	now := h.cal.Now()
	httpx.OK(c, marketStatusResponse{IsOpen: h.cal.IsOpen(now), NextOpen: h.cal.NextOpen(now)})
}
