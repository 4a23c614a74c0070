package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	apperrors "github.com/MessaoudiOussama/market-analytics/internal/errors"
)

type correlationResponse struct {
	GroupKey    string    `json:"group_key"`
	Speaker     string    `json:"speaker,omitempty"`
	Source      string    `json:"source,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Horizon     string    `json:"horizon,omitempty"`
	Coefficient *float64  `json:"coefficient"`
	PValue      *float64  `json:"p_value"`
	N           int       `json:"n"`
	Sufficient  bool      `json:"sufficient"`
	ComputedAt  time.Time `json:"computed_at"`
}

func toCorrelationResponses(results []domain.CorrelationResult) []correlationResponse {
	out := make([]correlationResponse, 0, len(results))
	for _, r := range results {
		out = append(out, correlationResponse{
			GroupKey:    r.GroupKey,
			Speaker:     r.Speaker,
			Source:      r.Source,
			Symbol:      r.Symbol,
			Horizon:     string(r.Horizon),
			Coefficient: r.Coefficient,
			PValue:      r.PValue,
			N:           r.N,
			Sufficient:  r.Sufficient,
			ComputedAt:  r.ComputedAt,
		})
	}
	return out
}

// parseGroupBy reads the group_by query parameter, a comma-separated list
// of grouping dimensions. Defaults to speaker,symbol,horizon.
func parseGroupBy(c echo.Context) ([]domain.GroupDimension, error) {
	raw := c.QueryParam("group_by")
	if raw == "" {
		return []domain.GroupDimension{domain.GroupBySpeaker, domain.GroupBySymbol, domain.GroupByHorizon}, nil
	}

	var dims []domain.GroupDimension
	seen := make(map[domain.GroupDimension]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := domain.ParseGroupDimension(part)
		if err != nil {
			return nil, apperrors.ValidationError(err.Error()).WithContext("group_by", raw)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, apperrors.ValidationError("group_by must name at least one dimension")
	}
	return dims, nil
}

func (s *Server) handleRecomputeCorrelations(c echo.Context) error {
	dims, err := parseGroupBy(c)
	if err != nil {
		return err
	}

	results, err := s.service.Correlate(c.Request().Context(), dims)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCorrelationResponses(results))
}

func (s *Server) handleListCorrelations(c echo.Context) error {
	dims, err := parseGroupBy(c)
	if err != nil {
		return err
	}

	results, err := s.service.ListCorrelations(c.Request().Context(), dims)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCorrelationResponses(results))
}
