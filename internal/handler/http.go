package handler

import (
	"context"
	"errors"
	"math/rand"
	"net/http"

	"soup-server/internal/cache"
	"soup-server/internal/models"
	"soup-server/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Встроенный пул тем для вдохновения (у оригинала он живет в конфиге клиента)
var inspirationThemes = []string{
	"time travel",
	"a locked room",
	"an old lighthouse",
	"the last train home",
	"a message in a bottle",
	"the night market",
	"a forgotten birthday",
	"deep sea expedition",
	"the understudy",
	"a one-way mirror",
}

// SoupHandler обрабатывает HTTP запросы игры.
type SoupHandler struct {
	service       service.GameService
	views         *cache.ViewCache
	logger        *zap.Logger
	defaultLocale string
}

// NewSoupHandler создает новый SoupHandler.
func NewSoupHandler(s service.GameService, views *cache.ViewCache, logger *zap.Logger, defaultLocale string) *SoupHandler {
	return &SoupHandler{
		service:       s,
		views:         views,
		logger:        logger.Named("SoupHandler"),
		defaultLocale: defaultLocale,
	}
}

// RegisterRoutes регистрирует маршруты игры.
func (h *SoupHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/inspirations", h.ListInspirations)
	api.POST("/soups", h.CreateSoup)
	api.GET("/soups", h.ListSoups)
	api.GET("/soups/:id", h.GetSoup)
	api.DELETE("/soups/:id", h.DeleteSoup)
	api.POST("/soups/:id/tries", h.AskQuestion)
	api.POST("/soups/:id/solution", h.SubmitSolution)
	api.POST("/soups/:id/giveup", h.GiveUp)
	api.POST("/soups/:id/hints", h.RequestHint)
}

// Health - проверка живости сервиса.
func (h *SoupHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListInspirations возвращает перемешанный список тем.
func (h *SoupHandler) ListInspirations(c echo.Context) error {
	themes := make([]string, len(inspirationThemes))
	copy(themes, inspirationThemes)
	rand.Shuffle(len(themes), func(i, j int) { themes[i], themes[j] = themes[j], themes[i] })
	return c.JSON(http.StatusOK, InspirationsResponse{Themes: themes})
}

// CreateSoup обрабатывает POST /api/soups.
//
// The new soup appears in the cached list immediately as a creating
// placeholder; the placeholder is replaced (or rolled back) once the judge
// finishes. The store never sees status=creating.
func (h *SoupHandler) CreateSoup(c echo.Context) error {
	var req CreateSoupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	locale := h.locale(req.Locale)

	placeholder := models.NewPlaceholderSoup()
	optimistic := h.listWithPlaceholder(placeholder)

	// В кэш коммитится только список, прочитанный из хранилища
	var created *models.Soup
	_, err := h.views.MutateOptimistically(c.Request().Context(), cache.KeySoups, optimistic,
		func(ctx context.Context) (any, error) {
			soup, err := h.service.CreateSoup(ctx, req.Theme, locale)
			if err != nil {
				return nil, err
			}
			created = soup
			return h.service.ListSoups(ctx)
		})
	if err != nil {
		if created == nil {
			return handleServiceError(c, err)
		}
		// Суп создан, но список не перечитался: оптимистичное значение уже
		// откатилось, перечитываем список из хранилища в фоне
		h.logger.Warn("List refresh after create failed", zap.Error(err))
		h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	}
	return c.JSON(http.StatusCreated, toSoupResponse(created))
}

// ListSoups обрабатывает GET /api/soups, отдавая кэшированный список.
func (h *SoupHandler) ListSoups(c echo.Context) error {
	entry := h.views.Read(cache.KeySoups)
	if entry.State == cache.StateReady {
		if soups, ok := entry.Value.([]models.Soup); ok {
			return c.JSON(http.StatusOK, h.toSoupList(soups))
		}
	}

	// Холодный кэш: читаем из хранилища и прогреваем кэш в фоне
	soups, err := h.service.ListSoups(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err)
	}
	h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	return c.JSON(http.StatusOK, h.toSoupList(soups))
}

// GetSoup обрабатывает GET /api/soups/:id.
func (h *SoupHandler) GetSoup(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	soup, err := h.service.GetSoup(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSoupResponse(soup))
}

// DeleteSoup обрабатывает DELETE /api/soups/:id.
func (h *SoupHandler) DeleteSoup(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	if err := h.service.DeleteSoup(c.Request().Context(), id); err != nil {
		return handleServiceError(c, err)
	}
	h.views.Drop(cache.KeyTries(id))
	h.views.Drop(cache.KeyRequesting(id))
	h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	return c.NoContent(http.StatusNoContent)
}

// AskQuestion обрабатывает POST /api/soups/:id/tries.
func (h *SoupHandler) AskQuestion(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	var req AskQuestionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}

	release, err := h.acquireRequesting(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer release()

	try, err := h.service.AskQuestion(c.Request().Context(), id, req.Question, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err)
	}

	h.views.InvalidateAndRefetch(context.Background(), cache.KeyTries(id))
	return c.JSON(http.StatusCreated, toTryResponse(*try))
}

// SubmitSolution обрабатывает POST /api/soups/:id/solution.
func (h *SoupHandler) SubmitSolution(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	var req SubmitSolutionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}

	release, err := h.acquireRequesting(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer release()

	soup, err := h.service.SubmitSolution(c.Request().Context(), id, req.Solution, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err)
	}

	h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	return c.JSON(http.StatusOK, toSoupResponse(soup))
}

// GiveUp обрабатывает POST /api/soups/:id/giveup.
func (h *SoupHandler) GiveUp(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	var req LocaleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}

	release, err := h.acquireRequesting(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer release()

	soup, err := h.service.GiveUp(c.Request().Context(), id, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err)
	}

	h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	return c.JSON(http.StatusOK, toSoupResponse(soup))
}

// RequestHint обрабатывает POST /api/soups/:id/hints.
func (h *SoupHandler) RequestHint(c echo.Context) error {
	id, err := parseSoupID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid soup id"})
	}
	var req LocaleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}

	release, err := h.acquireRequesting(id)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer release()

	soup, err := h.service.RequestHint(c.Request().Context(), id, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err)
	}

	h.views.InvalidateAndRefetch(context.Background(), cache.KeySoups)
	return c.JSON(http.StatusOK, toSoupResponse(soup))
}

// acquireRequesting реализует рекомендательную блокировку "один переход на
// суп за раз" через флаг в кэше.
func (h *SoupHandler) acquireRequesting(id uuid.UUID) (func(), error) {
	if !h.views.TryAcquireRequesting(id) {
		return nil, models.ErrOperationInFlight
	}
	return func() { h.views.SetRequesting(id, false) }, nil
}

func (h *SoupHandler) locale(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultLocale
}

func (h *SoupHandler) toSoupList(soups []models.Soup) []SoupResponse {
	out := make([]SoupResponse, 0, len(soups))
	for i := range soups {
		out = append(out, toSoupResponse(&soups[i]))
	}
	return out
}

// listWithPlaceholder собирает оптимистичное значение списка: текущий
// список плюс временная карточка creating.
func (h *SoupHandler) listWithPlaceholder(placeholder models.PlaceholderSoup) any {
	entry := h.views.Read(cache.KeySoups)
	soups, _ := entry.Value.([]models.Soup)
	optimistic := make([]any, 0, len(soups)+1)
	for i := range soups {
		optimistic = append(optimistic, soups[i])
	}
	return append(optimistic, placeholder)
}

func parseSoupID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Resource not found"}
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrValidation):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrInvalidOperation), errors.Is(err, models.ErrOperationInFlight):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrSolutionIncorrect):
		// Доменный отказ, не системная ошибка: клиент показывает "попробуйте еще"
		statusCode = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrJudgeUnavailable),
		errors.Is(err, models.ErrMalformedJudgeOutput),
		errors.Is(err, models.ErrInvalidJudgeOutput):
		statusCode = http.StatusBadGateway
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}
