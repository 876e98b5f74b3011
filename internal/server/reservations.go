package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/streamcart/streamcart/internal/accountctx"
	reservationdomain "github.com/streamcart/streamcart/internal/reservation/domain"
)

type openReservationRequest struct {
	ProductID   string `json:"product_id"`
	ViewerID    string `json:"viewer_id"`
	BroadcastID string `json:"broadcast_id"`
	Quantity    int64  `json:"quantity"`
	SourceType  string `json:"source_type"`
	SourceRowID string `json:"source_row_id"`
}

func (s *Server) OpenReservation(c *gin.Context) {
	var req openReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		AbortWithError(c, newValidationError("product_id", "invalid_product", "invalid product id"))
		return
	}

	accountID, _ := accountctx.AccountIDFromContext(c.Request.Context())

	open := reservationdomain.OpenRequest{
		AccountID: accountID,
		ProductID: productID,
		Quantity:  req.Quantity,
	}

	sourceType := reservationdomain.SourceType(strings.TrimSpace(req.SourceType))
	if sourceType == "" {
		sourceType = reservationdomain.SourceTypeManual
	}
	open.SourceType = sourceType

	if sourceRowID := strings.TrimSpace(req.SourceRowID); sourceRowID != "" {
		parsed, err := snowflake.ParseString(sourceRowID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("source_row_id", "invalid_source", "invalid source row id"))
			return
		}
		open.SourceRowID = parsed
	} else if sourceType == reservationdomain.SourceTypeManual {
		// Manual holds have no originating row; the reservation stands
		// for itself.
		open.SourceRowID = s.genID.Generate()
	}

	if viewerID := strings.TrimSpace(req.ViewerID); viewerID != "" {
		parsed, err := snowflake.ParseString(viewerID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("viewer_id", "invalid_viewer", "invalid viewer id"))
			return
		}
		open.ViewerID = &parsed
	}
	if broadcastID := strings.TrimSpace(req.BroadcastID); broadcastID != "" {
		parsed, err := snowflake.ParseString(broadcastID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("broadcast_id", "invalid_broadcast", "invalid broadcast id"))
			return
		}
		open.BroadcastID = &parsed
	}

	reservationID, err := s.reservationSvc.Open(c.Request.Context(), open)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"id":     reservationID.String(),
		"status": string(reservationdomain.StatusReserved),
	}})
}

func (s *Server) CommitReservation(c *gin.Context) {
	s.settleReservation(c, reservationdomain.StatusCommitted)
}

func (s *Server) ReleaseReservation(c *gin.Context) {
	s.settleReservation(c, reservationdomain.StatusReleased)
}

func (s *Server) settleReservation(c *gin.Context, to reservationdomain.Status) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid reservation id"))
		return
	}

	var settled bool
	switch to {
	case reservationdomain.StatusCommitted:
		settled, err = s.reservationSvc.Commit(c.Request.Context(), id)
	default:
		settled, err = s.reservationSvc.Release(c.Request.Context(), id)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":      id.String(),
		"settled": settled,
	}})
}

type settleBySourceRequest struct {
	SourceType  string `json:"source_type"`
	SourceRowID string `json:"source_row_id"`
}

func (s *Server) CommitReservationsBySource(c *gin.Context) {
	s.settleReservationsBySource(c, reservationdomain.StatusCommitted)
}

func (s *Server) ReleaseReservationsBySource(c *gin.Context) {
	s.settleReservationsBySource(c, reservationdomain.StatusReleased)
}

func (s *Server) settleReservationsBySource(c *gin.Context, to reservationdomain.Status) {
	var req settleBySourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sourceRowID, err := snowflake.ParseString(strings.TrimSpace(req.SourceRowID))
	if err != nil || sourceRowID == 0 {
		AbortWithError(c, newValidationError("source_row_id", "invalid_source", "invalid source row id"))
		return
	}

	accountID, _ := accountctx.AccountIDFromContext(c.Request.Context())
	sourceType := reservationdomain.SourceType(strings.TrimSpace(req.SourceType))

	var done bool
	switch to {
	case reservationdomain.StatusCommitted:
		done, err = s.reservationSvc.CommitBySource(c.Request.Context(), accountID, sourceType, sourceRowID)
	default:
		done, err = s.reservationSvc.ReleaseBySource(c.Request.Context(), accountID, sourceType, sourceRowID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"source_row_id": sourceRowID.String(),
		"settled":       done,
	}})
}
