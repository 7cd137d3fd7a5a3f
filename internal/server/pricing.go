package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPricingConfig reports the rates currently in effect so front-of-house
// clients can show tax and service-charge lines before an order settles.
func (s *Server) GetPricingConfig(c *gin.Context) {
	cfg := s.pricing.Get()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"currency":           cfg.Currency,
		"tax_rate_bps":       cfg.TaxRateBps,
		"service_charge_bps": cfg.ServiceChargeBps,
		"max_tip_bps":        cfg.MaxTipBps,
	}})
}
