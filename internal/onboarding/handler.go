package onboarding

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"missedcall_backend/internal/clients"
	"missedcall_backend/internal/gate"
	"missedcall_backend/platform/logger"
	"missedcall_backend/platform/phone"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientDirectory resolves clients from webhook addressing.
type ClientDirectory interface {
	GetByTwilioNumber(ctx context.Context, number string) (clients.Client, error)
	GetByOwnerPhone(ctx context.Context, ownerPhone string) (clients.Client, error)
	GetSettings(ctx context.Context, clientID uuid.UUID) (clients.Settings, error)
}

// RecordLoader reads onboarding records for the customer path.
type RecordLoader interface {
	Get(ctx context.Context, clientID uuid.UUID) (Record, error)
}

// OutboundSender sends SMS. Satisfied by *twilio.Client.
type OutboundSender interface {
	Send(ctx context.Context, to, from, body string) (string, error)
}

// Handler terminates the Twilio webhooks. Every SMS endpoint answers 200
// with TwiML no matter what happened internally; Twilio retries non-2xx
// responses and a retry storm helps nobody.
type Handler struct {
	engine    *Engine
	directory ClientDirectory
	records   RecordLoader
	sender    OutboundSender
	log       *logger.Logger
}

func NewHandler(engine *Engine, directory ClientDirectory, records RecordLoader, sender OutboundSender, log *logger.Logger) *Handler {
	return &Handler{
		engine:    engine,
		directory: directory,
		records:   records,
		sender:    sender,
		log:       log,
	}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/sms", h.InboundSMS)
	r.POST("/voice", h.InboundVoice)
	r.POST("/voice/status", h.VoiceStatus)
}

// InboundSMS routes an inbound message. Sender matching the registered
// owner phone of a client takes the onboarding path; anything else is a
// customer message for the business that owns the To number.
func (h *Handler) InboundSMS(c *gin.Context) {
	from := phone.NormalizeE164(c.PostForm("From"))
	to := phone.NormalizeE164(c.PostForm("To"))
	body := c.PostForm("Body")
	messageSid := c.PostForm("MessageSid")

	if owner, err := h.directory.GetByOwnerPhone(c.Request.Context(), from); err == nil {
		reply := h.engine.Advance(c.Request.Context(), owner, from, body, messageSid)
		writeTwiML(c, reply)
		return
	} else if !errors.Is(err, clients.ErrNotFound) {
		h.log.DatabaseError("clients.GetByOwnerPhone", err)
		writeTwiML(c, "")
		return
	}

	writeTwiML(c, h.customerReply(c.Request.Context(), to, from))
}

// gateProgress projects an onboarding record into the gate's evidence
// snapshot. The state is omitted once terminal so the gate's reasons only
// ever name an in-flight state.
func gateProgress(rec Record) gate.Progress {
	p := gate.Progress{
		Complete: rec.IsComplete(),
		Missing:  rec.MissingRequirements(),
	}
	if rec.CurrentState != StateComplete {
		p.State = string(rec.CurrentState)
	}
	return p
}

// customerReply decides what a customer texting a business number gets
// back. The gate owns the decision; this only executes it.
func (h *Handler) customerReply(ctx context.Context, businessNumber, customerPhone string) string {
	client, err := h.directory.GetByTwilioNumber(ctx, businessNumber)
	if errors.Is(err, clients.ErrNotFound) {
		h.log.Warn("inbound SMS for unknown number", "to", businessNumber)
		return ""
	}
	if err != nil {
		h.log.DatabaseError("clients.GetByTwilioNumber", err)
		return ""
	}
	log := h.log.WithClientID(client.ID.String())

	rec, err := h.records.Get(ctx, client.ID)
	if err != nil {
		log.DatabaseError("onboarding.Get", err)
		return ""
	}
	settings, err := h.directory.GetSettings(ctx, client.ID)
	if err != nil {
		log.DatabaseError("clients.GetSettings", err)
		return ""
	}

	decision := gate.CanProcessCustomerMessage(gateProgress(rec), settings)
	switch decision.Mode {
	case gate.Allow:
		return "Hi, you've reached " + client.BusinessName + ". Sorry we missed you! We'll get back to you as soon as possible."
	case gate.SoftBlock:
		log.Info("customer message soft-blocked", "reasons", strings.Join(decision.Reasons, "; "))
		return decision.Fallback
	default:
		log.Info("customer message hard-blocked", "reasons", strings.Join(decision.Reasons, "; "))
		return ""
	}
}

// InboundVoice answers an inbound call leg. The system never picks up;
// a rejected leg is what makes the caller's attempt a missed call. For a
// client waiting on the forwarding test this is the proof the forward
// path carries calls.
func (h *Handler) InboundVoice(c *gin.Context) {
	to := phone.NormalizeE164(c.PostForm("To"))

	client, err := h.directory.GetByTwilioNumber(c.Request.Context(), to)
	if err == nil {
		if err := h.engine.OnTestCallStarted(c.Request.Context(), client.ID); err != nil {
			h.log.WithClientID(client.ID.String()).Warn("test-call start handling failed", "error", err)
		}
	} else if !errors.Is(err, clients.ErrNotFound) {
		h.log.DatabaseError("clients.GetByTwilioNumber", err)
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response><Reject reason="busy"/></Response>`)
}

// missedStatuses are the Twilio final call statuses that count as a
// missed call.
var missedStatuses = map[string]bool{
	"no-answer": true,
	"busy":      true,
	"failed":    true,
}

// VoiceStatus handles the call-status callback: it both finishes the
// forwarding test for onboarding clients and triggers the missed-call
// text-back for customers of live clients.
func (h *Handler) VoiceStatus(c *gin.Context) {
	to := phone.NormalizeE164(c.PostForm("To"))
	caller := phone.NormalizeE164(c.PostForm("From"))
	missed := missedStatuses[strings.ToLower(c.PostForm("CallStatus"))]

	defer c.String(http.StatusOK, "")

	client, err := h.directory.GetByTwilioNumber(c.Request.Context(), to)
	if errors.Is(err, clients.ErrNotFound) {
		return
	}
	if err != nil {
		h.log.DatabaseError("clients.GetByTwilioNumber", err)
		return
	}
	log := h.log.WithClientID(client.ID.String())

	rec, err := h.records.Get(c.Request.Context(), client.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.DatabaseError("onboarding.Get", err)
		return
	}

	if err == nil && rec.CurrentState == StateTestCall {
		if herr := h.engine.OnTestCallCompleted(c.Request.Context(), client.ID, missed); herr != nil {
			log.Warn("test-call completion handling failed", "error", herr)
		}
		return
	}

	if missed && err == nil {
		h.textBackCustomer(c.Request.Context(), client, rec, caller, log)
	}
}

// textBackCustomer sends the missed-call SMS, subject to both gates.
func (h *Handler) textBackCustomer(ctx context.Context, client clients.Client, rec Record, caller string, log *logger.Logger) {
	if caller == "" || h.sender == nil || client.TwilioNumber == nil {
		return
	}

	settings, err := h.directory.GetSettings(ctx, client.ID)
	if err != nil {
		log.DatabaseError("clients.GetSettings", err)
		return
	}

	decision := gate.CanProcessCustomerMessage(gateProgress(rec), settings)
	body := ""
	switch decision.Mode {
	case gate.Allow:
		body = "Hi, you've reached " + client.BusinessName + ". Sorry we missed your call! Reply here and we'll get back to you as soon as possible."
	case gate.SoftBlock:
		body = decision.Fallback
	default:
		log.Info("missed-call text-back hard-blocked", "reasons", strings.Join(decision.Reasons, "; "))
		return
	}

	if send := gate.CanSendSMS(settings); !send.Allowed() {
		log.Info("missed-call text-back blocked at send", "reasons", strings.Join(send.Reasons, "; "))
		return
	}

	if _, err := h.sender.Send(ctx, caller, *client.TwilioNumber, body); err != nil {
		log.Error("missed-call text-back failed", "error", err)
	}
}

// writeTwiML renders the standard Twilio message response. An empty reply
// renders an empty <Response/> so Twilio sends nothing.
func writeTwiML(c *gin.Context, reply string) {
	c.Header("Content-Type", "text/xml")
	if reply == "" {
		c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response/>`)
		return
	}

	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(reply))
	c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response><Message>`+escaped.String()+`</Message></Response>`)
}
