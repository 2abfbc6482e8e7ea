package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

type listResponse struct {
	Opportunities []*domain.Opportunity `json:"opportunities"`
	Count         int                   `json:"count"`
}

type executeResponse struct {
	Result *domain.ExecutionResult `json:"result,omitempty"`
	Error  *apperror.ErrorBody     `json:"error,omitempty"`
}

func (s *Server) listOpportunities(c *gin.Context) {
	minProfit := decimal.Zero
	if raw := c.Query("min_profit"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			s.fail(c, apperror.Validation(apperror.CodeInvalidFormat, "min_profit: "+raw))
			return
		}
		minProfit = d
	}

	var strategy domain.Strategy
	if raw := c.Query("strategy"); raw != "" {
		st, err := domain.ParseStrategy(raw)
		if err != nil {
			s.fail(c, apperror.Validation(apperror.CodeInvalidInput, err.Error()))
			return
		}
		strategy = st
	}

	opps, err := s.deps.Opportunities.List(c.Request.Context(), minProfit, strategy)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Opportunities: opps, Count: len(opps)})
}

func (s *Server) getOpportunity(c *gin.Context) {
	id, ok := s.opportunityID(c)
	if !ok {
		return
	}
	opp, err := s.deps.Opportunities.GetByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

// executeOpportunity returns the execution result alongside the error when a
// leg failed, so callers see the partial tx refs.
func (s *Server) executeOpportunity(c *gin.Context) {
	id, ok := s.opportunityID(c)
	if !ok {
		return
	}
	result, err := s.deps.Executor.Execute(c.Request.Context(), id)
	if err != nil {
		if result == nil {
			s.fail(c, err)
			return
		}
		appErr := toAppError(err).WithSpan(c.Request.Context())
		body := appErr.Body()
		c.JSON(appErr.StatusCode, executeResponse{Result: result, Error: &body})
		return
	}
	c.JSON(http.StatusOK, executeResponse{Result: result})
}

func (s *Server) listPositions(c *gin.Context) {
	positions := s.deps.Positions.List(c.Query("open") == "true")
	if positions == nil {
		positions = []domain.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) closePosition(c *gin.Context) {
	pos, err := s.deps.Executor.ClosePosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.deps.Stats.Compute(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) risk(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Risk.State())
}

func (s *Server) opportunityID(c *gin.Context) (uint64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		s.fail(c, apperror.Validation(apperror.CodeInvalidFormat, "opportunity id: "+raw))
		return 0, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr := toAppError(err).WithSpan(c.Request.Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.log.Error(c.Request.Context(), "api request failed", "path", c.FullPath(), "error", appErr)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

func toAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal(apperror.CodeInternalError, "unexpected error", err)
}
