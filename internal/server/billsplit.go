package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
)

func (s *Server) FinalizeSplit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req splitdomain.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Strategy = splitdomain.Strategy(strings.ToUpper(strings.TrimSpace(string(req.Strategy))))

	resp, err := s.splitSvc.Finalize(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetActiveSplit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.splitSvc.Active(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
