package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	apperrors "github.com/MessaoudiOussama/market-analytics/internal/errors"
)

type ingestRequest struct {
	Source      string    `json:"source"`
	Speaker     string    `json:"speaker"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
}

type documentResponse struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	Speaker     string    `json:"speaker"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	State       string    `json:"state"`
	IngestedAt  time.Time `json:"ingested_at"`
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		Source:      doc.Source,
		Speaker:     doc.Speaker,
		Title:       doc.Title,
		URL:         doc.URL,
		PublishedAt: doc.PublishedAt,
		State:       string(doc.State),
		IngestedAt:  doc.IngestedAt,
	}
}

func (s *Server) handleIngestDocument(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Source == "" || req.URL == "" {
		return apperrors.ValidationError("source and url are required")
	}
	if req.PublishedAt.IsZero() {
		return apperrors.ValidationError("published_at is required")
	}

	doc, created, err := s.service.Ingest(c.Request().Context(), req.Source, req.Speaker, req.Title, req.URL, req.Content, req.PublishedAt)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(c echo.Context) error {
	filter, err := parseDocumentFilter(c)
	if err != nil {
		return err
	}

	docs, err := s.service.ListDocuments(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	return c.JSON(http.StatusOK, out)
}

func parseDocumentFilter(c echo.Context) (domain.DocumentFilter, error) {
	filter := domain.DocumentFilter{
		Source:  c.QueryParam("source"),
		Speaker: c.QueryParam("speaker"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.ValidationError("from must be an RFC 3339 timestamp")
		}
		filter.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.ValidationError("to must be an RFC 3339 timestamp")
		}
		filter.To = t
	}
	if v := c.QueryParam("limit"); v != "" {
		var limit int
		if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil || limit < 1 {
			return filter, apperrors.ValidationError("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *Server) handleGetDocument(c echo.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	doc, err := s.service.GetDocument(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

type sentimentResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Positive   float64   `json:"positive"`
	Neutral    float64   `json:"neutral"`
	Negative   float64   `json:"negative"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	ChunkCount int       `json:"chunk_count"`
}

func toSentimentResponse(agg *domain.DocumentSentiment) sentimentResponse {
	return sentimentResponse{
		DocumentID: agg.DocumentID,
		Positive:   agg.Positive,
		Neutral:    agg.Neutral,
		Negative:   agg.Negative,
		Label:      string(agg.Label),
		Confidence: agg.Confidence,
		ChunkCount: agg.ChunkCount,
	}
}

func (s *Server) handleGetSentiment(c echo.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	agg, err := s.service.GetDocumentSentiment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSentimentResponse(agg))
}

type deltaResponse struct {
	Symbol      string   `json:"symbol"`
	Horizon     string   `json:"horizon"`
	BasePrice   *float64 `json:"base_price"`
	TargetPrice *float64 `json:"target_price"`
	PctChange   *float64 `json:"pct_change"`
}

func (s *Server) handleGetDeltas(c echo.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	deltas, err := s.service.GetDocumentDeltas(c.Request().Context(), id)
	if err != nil {
		return err
	}

	out := make([]deltaResponse, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, deltaResponse{
			Symbol:      d.Symbol,
			Horizon:     string(d.Horizon),
			BasePrice:   d.BasePrice,
			TargetPrice: d.TargetPrice,
			PctChange:   d.PctChange,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleScoreDocument(c echo.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	if err := s.service.ChunkAndScore(c.Request().Context(), id); err != nil {
		return err
	}

	agg, err := s.service.GetDocumentSentiment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSentimentResponse(agg))
}

func (s *Server) handleAlignDocument(c echo.Context) error {
	id, err := parseDocumentID(c)
	if err != nil {
		return err
	}

	if err := s.service.AlignMarket(c.Request().Context(), id); err != nil {
		return err
	}

	return s.handleGetDeltas(c)
}

func parseDocumentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("id must be a UUID")
	}
	return id, nil
}
