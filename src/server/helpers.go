package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulseops/src/models"
)

// -----------------------------------------------------------------------------

// currentIdentity returns the identity stored by requireRole. Routes behind
// the middleware always carry one; the fallback only prevents a panic on a
// route registered without it.
func currentIdentity(c *gin.Context) *models.MIdentity {
	if v, ok := c.Get(identityContextKey); ok {
		if identity, ok := v.(*models.MIdentity); ok {
			return identity
		}
	}
	return &models.MIdentity{Subject: "unknown", Active: true}
}

// -----------------------------------------------------------------------------

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// -----------------------------------------------------------------------------

func isUnitScore(v float64) bool {
	return isFinite(v) && v >= 0 && v <= 1
}

// -----------------------------------------------------------------------------

// queryInt parses an integer query parameter, clamping the value to
// [floor, ceiling] and falling back on absent or unparseable input.
func queryInt(c *gin.Context, name string, fallback, floor, ceiling int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if v < floor {
		return floor
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
