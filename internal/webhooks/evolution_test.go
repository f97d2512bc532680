package webhooks

import (
	"encoding/json"
	"testing"
)

func decodePayload(t *testing.T, raw string) evolutionPayload {
	t.Helper()
	var p evolutionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	return p
}

func TestExtractEvolutionMessageConversationText(t *testing.T) {
	p := decodePayload(t, `{
		"event": "messages.upsert",
		"instance": "main",
		"data": {
			"key": {"remoteJid": "5511988887777@s.whatsapp.net", "fromMe": false, "id": "WAMID-1"},
			"pushName": "Maria Silva",
			"message": {"conversation": "Oi, quero um orçamento"},
			"messageType": "conversation",
			"messageTimestamp": 1756700000
		}
	}`)

	msg, ok := extractEvolutionMessage(p)
	if !ok {
		t.Fatal("expected a message to be extracted")
	}
	if msg.SenderDigits != "5511988887777" {
		t.Fatalf("sender digits = %q", msg.SenderDigits)
	}
	if msg.SenderName != "Maria Silva" {
		t.Fatalf("sender name = %q", msg.SenderName)
	}
	if msg.Text != "Oi, quero um orçamento" {
		t.Fatalf("text = %q", msg.Text)
	}
	if msg.ProviderMessageID != "WAMID-1" {
		t.Fatalf("provider message id = %q", msg.ProviderMessageID)
	}
	if msg.FromMe || msg.IsGroup {
		t.Fatal("direct inbound message flagged as own or group")
	}
}

func TestExtractEvolutionMessageExtendedText(t *testing.T) {
	p := decodePayload(t, `{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511988887777@s.whatsapp.net", "id": "WAMID-2"},
			"message": {"extendedTextMessage": {"text": "segue o link https://example.com"}}
		}
	}`)

	msg, ok := extractEvolutionMessage(p)
	if !ok {
		t.Fatal("expected a message to be extracted")
	}
	if msg.Text != "segue o link https://example.com" {
		t.Fatalf("text = %q", msg.Text)
	}
}

func TestExtractEvolutionMessageUppercaseEventName(t *testing.T) {
	p := decodePayload(t, `{
		"event": "MESSAGES_UPSERT",
		"data": {
			"key": {"remoteJid": "5511988887777@s.whatsapp.net", "id": "WAMID-3"},
			"message": {"conversation": "olá"}
		}
	}`)

	if _, ok := extractEvolutionMessage(p); !ok {
		t.Fatal("MESSAGES_UPSERT spelling was not recognized")
	}
}

func TestExtractEvolutionMessageImageCaption(t *testing.T) {
	p := decodePayload(t, `{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "5511988887777@s.whatsapp.net", "id": "WAMID-4"},
			"message": {"imageMessage": {"url": "https://mmg.whatsapp.net/abc", "caption": "foto da fachada"}}
		}
	}`)

	msg, ok := extractEvolutionMessage(p)
	if !ok {
		t.Fatal("expected a message to be extracted")
	}
	if msg.MediaURL != "https://mmg.whatsapp.net/abc" {
		t.Fatalf("media url = %q", msg.MediaURL)
	}
	if msg.Text != "foto da fachada" {
		t.Fatalf("caption not promoted to text, got %q", msg.Text)
	}
}

func TestExtractEvolutionMessageSkipsNonMessageEvents(t *testing.T) {
	for _, event := range []string{"connection.update", "qrcode.updated", "CONTACTS_UPDATE", ""} {
		p := evolutionPayload{Event: event}
		p.Data.Key.RemoteJid = "5511988887777@s.whatsapp.net"
		if _, ok := extractEvolutionMessage(p); ok {
			t.Fatalf("event %q produced a message", event)
		}
	}
}

func TestExtractEvolutionMessageFlagsGroupAndOwn(t *testing.T) {
	p := decodePayload(t, `{
		"event": "messages.upsert",
		"data": {
			"key": {"remoteJid": "120363042123456789@g.us", "fromMe": true, "id": "WAMID-5"},
			"message": {"conversation": "mensagem de grupo"}
		}
	}`)

	msg, ok := extractEvolutionMessage(p)
	if !ok {
		t.Fatal("group message should still extract so the caller can decide")
	}
	if !msg.IsGroup {
		t.Fatal("group JID not flagged")
	}
	if !msg.FromMe {
		t.Fatal("own message not flagged")
	}
}

func TestJidDigitsStripsDeviceSuffix(t *testing.T) {
	cases := map[string]string{
		"5511988887777@s.whatsapp.net":    "5511988887777",
		"5511988887777:12@s.whatsapp.net": "5511988887777",
		"5511988887777":                   "5511988887777",
		"@s.whatsapp.net":                 "",
	}
	for jid, want := range cases {
		if got := jidDigits(jid); got != want {
			t.Fatalf("jidDigits(%q) = %q, want %q", jid, got, want)
		}
	}
}
