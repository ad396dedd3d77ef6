package incident

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hoiarr/hoiarr/internal/domain/reference"
	"github.com/hoiarr/hoiarr/internal/platform/auth"
	"github.com/hoiarr/hoiarr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleQuality))
	g.POST("/batches", h.UploadBatch)
	g.GET("/batches/current", h.GetCurrentBatch)
	g.GET("/incidents", h.ListIncidents)
	g.GET("/incidents/export", h.ExportIncidents)
}

// BatchStatus describes the active batch and the reference tables it was
// joined against.
type BatchStatus struct {
	Batch     *Batch           `json:"batch"`
	Records   int              `json:"records"`
	Reference reference.Status `json:"reference"`
}

func (h *Handler) status(b *Batch) BatchStatus {
	return BatchStatus{
		Batch:     b,
		Records:   b.Len(),
		Reference: h.svc.Pipeline().Reference().Status(),
	}
}

// UploadBatch reads a raw CSV or XLSX request body. The optional "name"
// query parameter labels the batch source.
func (h *Handler) UploadBatch(c echo.Context) error {
	source := strings.TrimSpace(c.QueryParam("name"))
	if source == "" {
		source = "upload"
	}
	b, err := h.svc.Ingest(c.Request().Context(), source, c.Request().Body)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusCreated, h.status(b))
}

func (h *Handler) GetCurrentBatch(c echo.Context) error {
	b, err := h.svc.Current()
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, h.status(b))
}

func (h *Handler) ListIncidents(c echo.Context) error {
	f, err := ParseFilter(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	records, err := h.svc.Records(f)
	if err != nil {
		return readError(err)
	}

	p := pagination.FromContext(c)
	start, end := p.Window(len(records))
	resp := pagination.NewResponse(records[start:end], len(records), p.Limit, p.Offset)
	resp.Links = p.Links(c.Request().URL.Path, c.QueryParams(), len(records))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExportIncidents(c echo.Context) error {
	f, err := ParseFilter(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.svc.Current(); err != nil {
		return readError(err)
	}

	name := fmt.Sprintf("incidents-%s.csv", time.Now().UTC().Format("20060102-150405"))
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	res.WriteHeader(http.StatusOK)
	if _, err := h.svc.Export(res, f); err != nil {
		// Headers are already sent; the error is only logged.
		return err
	}
	return nil
}

func ingestError(err error) error {
	var he *echo.HTTPError
	var mc *MissingColumnsError
	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &mc):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"message": ErrMissingColumns.Error(),
			"missing": mc.Columns,
		})
	case errors.Is(err, ErrUnreadableTable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func readError(err error) error {
	if errors.Is(err, ErrNoBatch) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
