package scoring

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
	"github.com/hoiarr/hoiarr/internal/platform/auth"
	"github.com/hoiarr/hoiarr/pkg/pagination"
)

// BatchSource supplies the active batch.
type BatchSource interface {
	Current() (*incident.Batch, error)
}

// Config holds scoring parameters fixed at start-up.
type Config struct {
	Weights     Weights
	TrendWindow int
	Goals       []Goal
}

type Handler struct {
	src BatchSource
	cfg Config
}

func NewHandler(src BatchSource, cfg Config) *Handler {
	if cfg.TrendWindow < 1 {
		cfg.TrendWindow = DefaultTrendWindow
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if len(cfg.Goals) == 0 {
		cfg.Goals = DefaultGoals
	}
	return &Handler{src: src, cfg: cfg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleQuality))
	g.GET("/summary/overview", h.GetOverview)
	g.GET("/summary/crosstab", h.GetCrossTab)
	g.GET("/summary/matrix", h.GetRiskMatrix)
	g.GET("/summary/codes", h.GetCodeSummary)
	g.GET("/summary/goals", h.GetGoals)
	g.GET("/summary/heatmap", h.GetHeatmap)
	g.GET("/summary/top", h.GetTopCodes)
	g.GET("/summary/unresolved", h.ListUnresolved)
	g.GET("/scores/persistence", h.GetPersistence)
	g.GET("/scores/early-warning", h.GetEarlyWarning)
}

// view resolves the filtered records of the active batch. The batch is read
// once so every figure in a response comes from the same batch.
func (h *Handler) view(c echo.Context) (*incident.Batch, []incident.Record, error) {
	f, err := incident.ParseFilter(c.QueryParams())
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.src.Current()
	if err != nil {
		if errors.Is(err, incident.ErrNoBatch) {
			return nil, nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return b, f.Apply(b.Records), nil
}

func (h *Handler) GetOverview(c echo.Context) error {
	b, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildOverview(records, b.Dropped))
}

func (h *Handler) GetCrossTab(c echo.Context) error {
	rows, err := dimensionParam(c, "rows", DimStandardCategory)
	if err != nil {
		return err
	}
	cols, err := dimensionParam(c, "cols", DimSeverity)
	if err != nil {
		return err
	}
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CrossTabulate(records, rows, cols))
}

func (h *Handler) GetRiskMatrix(c echo.Context) error {
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildRiskMatrix(records))
}

func (h *Handler) GetCodeSummary(c echo.Context) error {
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CodeSummary(records))
}

func (h *Handler) GetGoals(c echo.Context) error {
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GoalSummaries(records, h.cfg.Goals))
}

func (h *Handler) GetHeatmap(c echo.Context) error {
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildHeatmap(records))
}

func (h *Handler) GetTopCodes(c echo.Context) error {
	n := DefaultTopN
	if s := c.QueryParam("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be a positive integer")
		}
		n = v
	}
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TopCodes(records, n))
}

func (h *Handler) ListUnresolved(c echo.Context) error {
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	unresolved := Unresolved(records)
	p := pagination.FromContext(c)
	start, end := p.Window(len(unresolved))
	resp := pagination.NewResponse(unresolved[start:end], len(unresolved), p.Limit, p.Offset)
	resp.Links = p.Links(c.Request().URL.Path, c.QueryParams(), len(unresolved))
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPersistence(c echo.Context) error {
	b, records, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Persistence(records, b.SpanMonths))
}

// GetEarlyWarning accepts optional w_freq, w_sev and w_trend overrides; all
// three must be given together.
func (h *Handler) GetEarlyWarning(c echo.Context) error {
	w, err := h.weights(c)
	if err != nil {
		return err
	}
	_, records, err := h.view(c)
	if err != nil {
		return err
	}
	out, err := EarlyWarnings(records, w, h.cfg.TrendWindow)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) weights(c echo.Context) (Weights, error) {
	names := []string{"w_freq", "w_sev", "w_trend"}
	given := 0
	vals := make([]float64, len(names))
	for i, n := range names {
		s := strings.TrimSpace(c.QueryParam(n))
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Weights{}, echo.NewHTTPError(http.StatusBadRequest, n+" must be a number")
		}
		vals[i] = v
		given++
	}
	switch given {
	case 0:
		return h.cfg.Weights, nil
	case len(names):
		w := Weights{Frequency: vals[0], Severity: vals[1], Trend: vals[2]}
		if err := w.Validate(); err != nil {
			return Weights{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return w, nil
	default:
		return Weights{}, echo.NewHTTPError(http.StatusBadRequest, "w_freq, w_sev and w_trend must be given together")
	}
}

func dimensionParam(c echo.Context, name string, def Dimension) (Dimension, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return def, nil
	}
	d, err := ParseDimension(s)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return d, nil
}
