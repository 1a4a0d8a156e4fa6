package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/oraculum/internal/app"
	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ledger"
)

type Handler struct {
	svc    *app.ReadingService
	ledger *ledger.Ledger
}

func NewHandler(svc *app.ReadingService, l *ledger.Ledger) *Handler {
	return &Handler{svc: svc, ledger: l}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.POST("/v1/readings", h.StartReading)
	e.GET("/v1/readings/:id", h.GetReading)
	e.GET("/v1/readings/:id/events", h.StreamEvents)
	e.GET("/v1/readings/:id/image", h.GetImage)
	e.POST("/v1/readings/:id/answers", h.SubmitAnswers)
	e.DELETE("/v1/readings/:id", h.CancelReading)
	e.GET("/v1/users/:id/balance", h.GetBalance)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) StartReading(c echo.Context) error {
	var req StartReadingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
	}
	if len(req.Question) > 500 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question must be at most 500 characters"})
	}

	sess, err := h.svc.StartReading(c.Request().Context(), app.StartRequest{
		UserID:     req.UserID,
		Tariff:     req.Tariff,
		SpreadType: domain.SpreadType(req.Spread),
		Profile: domain.Profile{
			Name:     req.Name,
			Age:      req.Age,
			Question: req.Question,
		},
	})
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusCreated, StartReadingResponse{
		SessionID: sess.ID,
		State:     string(sess.State()),
		Spread:    toSpreadResponse(sess.Spread()),
	})
}

func (h *Handler) GetReading(c echo.Context) error {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}

	resp := SessionResponse{
		SessionID: sess.ID,
		State:     string(sess.State()),
		Outcome:   sess.Outcome(),
	}
	if sess.State() == domain.StateAwaitingAnswers {
		resp.Questions = sess.Questions()
	}
	return c.JSON(http.StatusOK, resp)
}

// StreamEvents replays the session's event stream as server-sent events
// until the outcome event or client disconnect.
func (h *Handler) StreamEvents(c echo.Context) error {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			data, merr := json.Marshal(ev)
			if merr != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			w.Flush()
			if ev.Type == app.EventOutcome {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Handler) GetImage(c echo.Context) error {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	img := sess.Image()
	if len(img) == 0 {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no image for this reading"})
	}
	return c.Blob(http.StatusOK, "image/png", img)
}

func (h *Handler) SubmitAnswers(c echo.Context) error {
	var req AnswersRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Answers) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "answers are required"})
	}
	if err := h.svc.SubmitAnswers(c.Param("id"), req.Answers); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) CancelReading(c echo.Context) error {
	if err := h.svc.Cancel(c.Param("id")); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) GetBalance(c echo.Context) error {
	balance, err := h.ledger.Balance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{UserID: c.Param("id"), Balance: balance})
}

func toSpreadResponse(s domain.Spread) SpreadResponse {
	cards := make([]CardResponse, len(s.Cards))
	for i, dc := range s.Cards {
		cards[i] = CardResponse{
			ID:            dc.ID,
			Name:          dc.Name,
			Position:      dc.Position,
			PositionLabel: dc.PositionLabel,
			Orientation:   dc.Orientation,
			Keywords:      dc.Keywords,
			Short:         dc.Short,
		}
	}
	return SpreadResponse{Type: string(s.Type), Name: s.Name, Cards: cards}
}

func mapError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrDeckNotFound),
		errors.Is(err, domain.ErrUnknownUser):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnknownSpread),
		errors.Is(err, domain.ErrUnknownTariff),
		errors.Is(err, domain.ErrDeckTooSmall):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotAwaitingInput),
		errors.Is(err, domain.ErrSessionTerminal):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
