package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	botmodel "github.com/carelink/whatsapp-bot/internal/model/bot"
	"github.com/carelink/whatsapp-bot/internal/service/whatsapp"
)

type stubEngine struct {
	gotIdentity string
	gotEvent    botmodel.Event
	reply       string
}

func (s *stubEngine) HandleInboundEvent(_ context.Context, identity string, event botmodel.Event) string {
	s.gotIdentity = identity
	s.gotEvent = event
	return s.reply
}

type recorderGateway struct {
	sent     []string
	sentTo   []string
	markedAs []string
}

func (g *recorderGateway) SendText(_ context.Context, to, body string) error {
	g.sentTo = append(g.sentTo, to)
	g.sent = append(g.sent, body)
	return nil
}

func (g *recorderGateway) SendTemplate(context.Context, string, string, string) error { return nil }

func (g *recorderGateway) SendInteractive(context.Context, string, string, []whatsapp.Button) error {
	return nil
}

func (g *recorderGateway) MarkRead(_ context.Context, messageID string) error {
	g.markedAs = append(g.markedAs, messageID)
	return nil
}

func setup(reply string) (*chi.Mux, *stubEngine, *recorderGateway) {
	engine := &stubEngine{reply: reply}
	gateway := &recorderGateway{}
	h := New(engine, gateway, "verify-secret")

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, engine, gateway
}

func TestVerifyEchoesChallenge(t *testing.T) {
	r, _, _ := setup("")

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=12345", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "12345" {
		t.Fatalf("expected challenge echo, got %q", resp.Body.String())
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	r, _, _ := setup("")

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestVerifyMissingParameters(t *testing.T) {
	r, _, _ := setup("")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

const textEnvelope = `{
  "entry": [{
    "changes": [{
      "field": "messages",
      "value": {
        "messages": [{
          "id": "wamid.1",
          "from": "wa-1",
          "type": "text",
          "text": {"body": "hi"}
        }]
      }
    }]
  }]
}`

func TestInboundTextMessage(t *testing.T) {
	r, engine, gateway := setup("welcome!")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textEnvelope))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if engine.gotIdentity != "wa-1" {
		t.Fatalf("unexpected identity: %s", engine.gotIdentity)
	}
	if engine.gotEvent.Kind != botmodel.EventText || engine.gotEvent.Body != "hi" {
		t.Fatalf("unexpected event: %+v", engine.gotEvent)
	}
	if len(gateway.markedAs) != 1 || gateway.markedAs[0] != "wamid.1" {
		t.Fatalf("message not marked read: %v", gateway.markedAs)
	}
	if len(gateway.sent) != 1 || gateway.sent[0] != "welcome!" || gateway.sentTo[0] != "wa-1" {
		t.Fatalf("reply not delivered: %v to %v", gateway.sent, gateway.sentTo)
	}
}

const interactiveEnvelope = `{
  "entry": [{
    "changes": [{
      "field": "messages",
      "value": {
        "messages": [{
          "id": "wamid.2",
          "from": "wa-1",
          "type": "interactive",
          "interactive": {"type": "button_reply", "button_reply": {"id": "patient_access"}}
        }]
      }
    }]
  }]
}`

func TestInboundInteractiveMessage(t *testing.T) {
	r, engine, _ := setup("ok")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(interactiveEnvelope))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if engine.gotEvent.Kind != botmodel.EventButtonReply || engine.gotEvent.ReplyID != "patient_access" {
		t.Fatalf("unexpected event: %+v", engine.gotEvent)
	}
}

func TestInboundNoMessages(t *testing.T) {
	r, _, gateway := setup("ok")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry": []}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "no_messages") {
		t.Fatalf("expected no_messages status, got %s", resp.Body.String())
	}
	if len(gateway.sent) != 0 {
		t.Fatalf("nothing should be sent: %v", gateway.sent)
	}
}

func TestInboundInvalidJSON(t *testing.T) {
	r, _, _ := setup("ok")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{broken`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
