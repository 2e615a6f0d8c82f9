package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/settings"
)

// CatalogResponse is the body of GET /catalog.
type CatalogResponse struct {
	Entities   []*model.Entity `json:"entities"`
	IsLoading  bool            `json:"isLoading"`
	Generation uint64          `json:"generation"`
	BaseURL    string          `json:"baseUrl"`
	Total      int             `json:"total"`
}

// DailyResponse is the body of the daily endpoints. Entity is null when
// the catalog is empty.
type DailyResponse struct {
	Entity *model.Entity `json:"entity"`
	Day    string        `json:"day"`
}

// SettingsUpdate is the body of PUT /settings. Absent fields are left
// unchanged.
type SettingsUpdate struct {
	ServerBaseURL       *string `json:"serverBaseUrl"`
	ShowScientificNames *bool   `json:"showScientificNames"`
	DarkMode            *bool   `json:"darkMode"`
}

// GetCatalog returns the current snapshot, optionally filtered by the
// region and q query parameters.
func (s *Server) GetCatalog(c echo.Context) error {
	var region model.Region
	if raw := c.QueryParam("region"); raw != "" {
		r, ok := model.ParseRegion(raw)
		if !ok {
			return s.HandleError(c, nil, "Unknown region: "+raw, http.StatusBadRequest)
		}
		region = r
	}
	query := strings.TrimSpace(c.QueryParam("q"))

	snap := s.engine.Catalog()
	entities := snap.Entities
	if region != "" || query != "" {
		entities = snap.Filter(region, query)
	}
	if entities == nil {
		entities = []*model.Entity{}
	}

	return c.JSON(http.StatusOK, CatalogResponse{
		Entities:   entities,
		IsLoading:  snap.IsLoading,
		Generation: snap.Generation,
		BaseURL:    snap.BaseURL,
		Total:      snap.Len(),
	})
}

// GetEntity returns one entity of the current snapshot by identity.
func (s *Server) GetEntity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return s.HandleError(c, err, "Invalid entity id", http.StatusBadRequest)
	}

	e := s.engine.Catalog().FindByID(id)
	if e == nil {
		return s.HandleError(c, nil, "Entity not found", http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, e)
}

// GetDaily returns the current daily selection.
func (s *Server) GetDaily(c echo.Context) error {
	return c.JSON(http.StatusOK, DailyResponse{
		Entity: s.engine.CurrentDaily(),
		Day:    s.engine.Today(),
	})
}

// RefreshDaily forces a new daily selection. A persistence failure still
// changes the selection, so it is logged and the new pick returned.
func (s *Server) RefreshDaily(c echo.Context) error {
	e, err := s.engine.RefreshDaily(c.Request().Context())
	if err != nil {
		s.logger.Warn("daily selection not persisted", logger.Error(err))
	}
	return c.JSON(http.StatusOK, DailyResponse{
		Entity: e,
		Day:    s.engine.Today(),
	})
}

// GetSettings returns every preference.
func (s *Server) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.prefs.Values())
}

// UpdateSettings applies a partial update. The server address is validated
// before anything is written.
func (s *Server) UpdateSettings(c echo.Context) error {
	var req SettingsUpdate
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "Invalid request body", http.StatusBadRequest)
	}

	if req.ServerBaseURL != nil {
		if err := settings.ValidateAddress(*req.ServerBaseURL); err != nil {
			return s.HandleError(c, err, "Invalid server address", http.StatusBadRequest)
		}
	}

	ctx := c.Request().Context()
	if req.ServerBaseURL != nil {
		if err := s.prefs.SetServerBaseURL(ctx, *req.ServerBaseURL); err != nil {
			return s.HandleError(c, err, "Failed to save server address", http.StatusInternalServerError)
		}
	}
	if req.ShowScientificNames != nil {
		if err := s.prefs.SetShowScientificNames(ctx, *req.ShowScientificNames); err != nil {
			return s.HandleError(c, err, "Failed to save display setting", http.StatusInternalServerError)
		}
	}
	if req.DarkMode != nil {
		if err := s.prefs.SetDarkMode(ctx, *req.DarkMode); err != nil {
			return s.HandleError(c, err, "Failed to save theme setting", http.StatusInternalServerError)
		}
	}

	return c.JSON(http.StatusOK, s.prefs.Values())
}
