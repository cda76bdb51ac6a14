package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	"github.com/xim/effekt-backend/internal/distribution/kid"
)

func (s *Server) ListOrganizations(c *gin.Context) {
	orgs, err := s.organizationSvc.GetActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (s *Server) ListDistributions(c *gin.Context) {
	page, limit := pagination(c)
	resp, err := s.distributionSvc.List(c.Request.Context(), distributiondomain.ListFilter{
		KID:   c.Query("kid"),
		Donor: c.Query("donor"),
	}, page, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetDistribution(c *gin.Context) {
	code := c.Param("kid")
	if !kid.Validate(code) {
		AbortWithError(c, newValidationError("kid", "invalid_kid", "malformed reference code"))
		return
	}

	split, err := s.distributionSvc.GetSplitByKID(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kid": code, "split": split})
}
