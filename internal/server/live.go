package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/streamcart/streamcart/internal/accountctx"
	livesaledomain "github.com/streamcart/streamcart/internal/livesale/domain"
	"go.uber.org/zap"
)

type addClaimRequest struct {
	ViewerID   string `json:"viewer_id"`
	OperatorID string `json:"operator_id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  *int64 `json:"unit_price"`
	VATRate    *int32 `json:"vat_rate"`
}

type stagedItemResponse struct {
	ID            string     `json:"id"`
	BroadcastID   string     `json:"broadcast_id"`
	ViewerID      string     `json:"viewer_id"`
	ProductID     *string    `json:"product_id,omitempty"`
	Name          string     `json:"name"`
	SKU           string     `json:"sku,omitempty"`
	Quantity      int64      `json:"quantity"`
	UnitPrice     int64      `json:"unit_price"`
	VATRate       int32      `json:"vat_rate"`
	SourceType    string     `json:"source_type"`
	ReservationID *string    `json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`
}

func toStagedItemResponse(item *livesaledomain.StagedLineItem) stagedItemResponse {
	resp := stagedItemResponse{
		ID:            item.ID.String(),
		BroadcastID:   item.BroadcastID.String(),
		ViewerID:      item.ViewerID.String(),
		Name:          item.Name,
		SKU:           item.SKU,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		VATRate:       item.VATRate,
		SourceType:    string(item.SourceType),
		CreatedAt:     item.CreatedAt,
		TransferredAt: item.TransferredAt,
	}
	if item.ProductID != nil {
		id := item.ProductID.String()
		resp.ProductID = &id
	}
	if item.ReservationID != nil {
		id := item.ReservationID.String()
		resp.ReservationID = &id
	}
	return resp
}

func (s *Server) AddLiveClaim(c *gin.Context) {
	broadcastID, err := snowflake.ParseString(strings.TrimSpace(c.Param("broadcastId")))
	if err != nil || broadcastID == 0 {
		AbortWithError(c, newValidationError("broadcast_id", "invalid_broadcast", "invalid broadcast id"))
		return
	}

	var req addClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	viewerID, err := snowflake.ParseString(strings.TrimSpace(req.ViewerID))
	if err != nil || viewerID == 0 {
		AbortWithError(c, newValidationError("viewer_id", "invalid_viewer", "invalid viewer id"))
		return
	}

	if s.claimLimiter.Enabled() {
		allowed, err := s.claimLimiter.AllowClaim(c.Request.Context(), broadcastID, viewerID)
		if err != nil {
			// Redis trouble never blocks the sale.
			s.log.Warn("claim rate limit check failed, allowing request", zap.Error(err))
		} else if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	accountID, _ := accountctx.AccountIDFromContext(c.Request.Context())

	claim := livesaledomain.AddClaimRequest{
		AccountID:   accountID,
		BroadcastID: broadcastID,
		ViewerID:    viewerID,
		Name:        req.Name,
		SKU:         req.SKU,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		VATRate:     req.VATRate,
	}
	if operatorID := strings.TrimSpace(req.OperatorID); operatorID != "" {
		parsed, err := snowflake.ParseString(operatorID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("operator_id", "invalid_operator", "invalid operator id"))
			return
		}
		claim.OperatorID = &parsed
	}
	if productID := strings.TrimSpace(req.ProductID); productID != "" {
		parsed, err := snowflake.ParseString(productID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("product_id", "invalid_product", "invalid product id"))
			return
		}
		claim.ProductID = &parsed
	}

	staged, err := s.livesaleSvc.AddClaim(c.Request.Context(), claim)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toStagedItemResponse(staged)})
}

type finalizeBatchRequest struct {
	OperatorID string `json:"operator_id"`
}

func (s *Server) FinalizeLiveBatch(c *gin.Context) {
	broadcastID, err := snowflake.ParseString(strings.TrimSpace(c.Param("broadcastId")))
	if err != nil || broadcastID == 0 {
		AbortWithError(c, newValidationError("broadcast_id", "invalid_broadcast", "invalid broadcast id"))
		return
	}

	var req finalizeBatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	accountID, _ := accountctx.AccountIDFromContext(c.Request.Context())

	finalize := livesaledomain.FinalizeBatchRequest{
		AccountID:   accountID,
		BroadcastID: broadcastID,
	}
	if operatorID := strings.TrimSpace(req.OperatorID); operatorID != "" {
		parsed, err := snowflake.ParseString(operatorID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("operator_id", "invalid_operator", "invalid operator id"))
			return
		}
		finalize.OperatorID = &parsed
	}

	migrated, err := s.livesaleSvc.FinalizeBatch(c.Request.Context(), finalize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"broadcast_id": broadcastID.String(),
		"migrated":     migrated,
	}})
}
