package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/streamcart/streamcart/internal/catalog/domain"
)

type listProductsQuery struct {
	Name   string `form:"name"`
	Active *bool  `form:"active"`
}

func (s *Server) ListProducts(c *gin.Context) {
	var query listProductsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	products, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListRequest{
		Name:   strings.TrimSpace(query.Name),
		Active: query.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

func (s *Server) GetProductByID(c *gin.Context) {
	product, err := s.catalogSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}
