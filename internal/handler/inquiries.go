package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/myblog/internal/model"
	"github.com/iliyamo/myblog/internal/queue"
	"github.com/iliyamo/myblog/internal/utils"
)

// InquiryPublisher announces stored inquiries on the message broker.
type InquiryPublisher interface {
	PublishInquiryReceived(ctx context.Context, ev queue.InquiryReceivedEvent) error
}

// InquiryHandler serves the contact form and its admin inbox.
type InquiryHandler struct {
	Clients    Clients
	Publisher  InquiryPublisher // may be nil
	Production bool
}

func NewInquiryHandler(clients Clients, pub InquiryPublisher, production bool) *InquiryHandler {
	return &InquiryHandler{Clients: clients, Publisher: pub, Production: production}
}

type createInquiryReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	// Website is a honeypot field hidden from people; bots fill it in.
	Website string `json:"website"`
}

type updateInquiryReq struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

// Create: POST /api/inquiries. The broker event is sent in the background;
// its failure never fails the request.
func (h *InquiryHandler) Create(c echo.Context) error {
	var req createInquiryReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	if strings.TrimSpace(req.Website) != "" {
		log.Ctx(c.Request().Context()).Info().Str("ip", utils.MaskIP(c.RealIP())).Msg("inquiry honeypot filled, dropped")
		return c.JSON(http.StatusCreated, echo.Map{"status": model.InquiryNew})
	}
	in := &model.Inquiry{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := client.CreateInquiry(ctx, in); err != nil {
		return respond(c, err, h.Production)
	}

	if h.Publisher != nil {
		ev := queue.InquiryReceivedEvent{
			InquiryID:  in.ID,
			Name:       in.Name,
			Email:      in.Email,
			Subject:    in.Subject,
			ReceivedAt: in.CreatedAt.UTC().Format(time.RFC3339),
		}
		pubCtx := context.WithoutCancel(c.Request().Context())
		go func() {
			ctx, cancel := context.WithTimeout(pubCtx, 10*time.Second)
			defer cancel()
			if err := h.Publisher.PublishInquiryReceived(ctx, ev); err != nil {
				log.Ctx(ctx).Warn().Err(err).Uint64("inquiry_id", ev.InquiryID).Msg("inquiry event not published")
			}
		}()
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": in.ID, "status": in.Status})
}

// List: GET /api/inquiries?status=. Reading the inbox needs an admin
// session or token; the service-role fallback only covers writes.
func (h *InquiryHandler) List(c echo.Context) error {
	client, err := h.Clients.ForRead(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := client.ListInquiries(ctx, c.QueryParam("status"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"inquiries": list})
}

// UpdateStatus: PATCH /api/inquiries with {"id", "status"}
func (h *InquiryHandler) UpdateStatus(c echo.Context) error {
	var req updateInquiryReq
	if err := c.Bind(&req); err != nil {
		return respond(c, badBody(), h.Production)
	}
	if req.ID == 0 {
		return respond(c, badID(), h.Production)
	}
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	in, err := client.UpdateInquiryStatus(ctx, req.ID, req.Status)
	if err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, in)
}

// Delete: DELETE /api/inquiries?id=
func (h *InquiryHandler) Delete(c echo.Context) error {
	id, err := parseID(c.QueryParam("id"))
	if err != nil {
		return respond(c, err, h.Production)
	}
	client, err := h.Clients.ForWrite(c)
	if err != nil {
		return respond(c, err, h.Production)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := client.DeleteInquiry(ctx, id); err != nil {
		return respond(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
