package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	botmodel "github.com/carelink/whatsapp-bot/internal/model/bot"
	"github.com/carelink/whatsapp-bot/internal/service/whatsapp"
	"github.com/carelink/whatsapp-bot/pkg/utils"
)

// Engine processes one inbound event into a reply.
type Engine interface {
	HandleInboundEvent(ctx context.Context, identity string, event botmodel.Event) string
}

// Handler terminates the WhatsApp webhook: the GET verification
// handshake and the POST message envelope.
type Handler struct {
	engine      Engine
	gateway     whatsapp.Gateway
	verifyToken string
}

// New builds a webhook handler.
func New(engine Engine, gateway whatsapp.Gateway, verifyToken string) *Handler {
	return &Handler{engine: engine, gateway: gateway, verifyToken: verifyToken}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook", h.handleVerify)
	r.Post("/webhook", h.handleInbound)
}

// handleVerify echoes the challenge when the supplied token matches the
// configured secret.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		logrus.Warn("webhook verification missing required parameters")
		http.Error(w, "Missing parameters", http.StatusBadRequest)
		return
	}

	if mode != "subscribe" || token != h.verifyToken {
		logrus.WithField("mode", mode).Warn("webhook verification failed")
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	logrus.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Envelope shapes mirror the Graph API webhook payload. Only the fields
// the bot consumes are declared.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Field string      `json:"field"`
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	Messages []inboundMessage  `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type inboundMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var body envelope
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logrus.WithError(err).Warn("invalid webhook payload")
		utils.RespondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	processed := false
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				h.processMessage(r.Context(), msg)
				processed = true
			}
			if n := len(change.Value.Statuses); n > 0 {
				logrus.WithField("count", n).Debug("ignoring message status updates")
			}
		}
	}

	if !processed {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "no_messages"})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// processMessage translates one wire message into an engine event,
// produces the reply and delivers it. Delivery failures are logged; the
// webhook always acknowledges so the platform does not redeliver.
func (h *Handler) processMessage(ctx context.Context, msg inboundMessage) {
	if msg.From == "" {
		logrus.Warn("inbound message without sender, skipping")
		return
	}

	if err := h.gateway.MarkRead(ctx, msg.ID); err != nil {
		logrus.WithField("message_id", msg.ID).WithError(err).Warn("mark read failed")
	}

	event, ok := toEvent(msg)
	if !ok {
		logrus.WithField("type", msg.Type).Debug("unsupported message type")
		event = botmodel.Event{Kind: "unsupported"}
	}

	reply := h.engine.HandleInboundEvent(ctx, msg.From, event)
	if reply == "" {
		return
	}
	if err := h.gateway.SendText(ctx, msg.From, reply); err != nil {
		logrus.WithField("to", msg.From).WithError(err).Error("reply delivery failed")
	}
}

func toEvent(msg inboundMessage) (botmodel.Event, bool) {
	switch msg.Type {
	case "text":
		body := ""
		if msg.Text != nil {
			body = msg.Text.Body
		}
		return botmodel.TextEvent(body), true
	case "interactive":
		if msg.Interactive == nil {
			return botmodel.Event{}, false
		}
		switch msg.Interactive.Type {
		case "button_reply":
			if msg.Interactive.ButtonReply != nil {
				return botmodel.ButtonEvent(msg.Interactive.ButtonReply.ID), true
			}
		case "list_reply":
			if msg.Interactive.ListReply != nil {
				return botmodel.ListEvent(msg.Interactive.ListReply.ID), true
			}
		}
		return botmodel.Event{}, false
	case "button":
		// Template quick-reply buttons carry their label as text.
		if msg.Button != nil {
			return botmodel.TextEvent(msg.Button.Text), true
		}
		return botmodel.Event{}, false
	default:
		return botmodel.Event{}, false
	}
}
