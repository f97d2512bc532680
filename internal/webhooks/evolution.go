package webhooks

import (
	"strings"
)

// Evolution API webhook payload. Only the fields we consume are declared;
// the rest of the envelope is carried verbatim into the lead's platform data.
type evolutionPayload struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
			ImageMessage struct {
				URL     string `json:"url"`
				Caption string `json:"caption"`
			} `json:"imageMessage"`
			AudioMessage struct {
				URL string `json:"url"`
			} `json:"audioMessage"`
			DocumentMessage struct {
				URL      string `json:"url"`
				FileName string `json:"fileName"`
			} `json:"documentMessage"`
		} `json:"message"`
		MessageType      string `json:"messageType"`
		MessageTimestamp int64  `json:"messageTimestamp"`
	} `json:"data"`
}

// InboundMessage is the provider-neutral result of payload extraction.
type InboundMessage struct {
	SenderDigits      string
	SenderName        string
	Text              string
	MediaURL          string
	ProviderMessageID string
	FromMe            bool
	IsGroup           bool
}

// extractEvolutionMessage flattens a messages.upsert payload. Returns false
// for events that carry no message (connection updates, QR refreshes) and for
// payloads without a sender JID.
func extractEvolutionMessage(p evolutionPayload) (InboundMessage, bool) {
	if normalizeEventName(p.Event) != "messages.upsert" {
		return InboundMessage{}, false
	}

	jid := p.Data.Key.RemoteJid
	if jid == "" {
		return InboundMessage{}, false
	}

	msg := InboundMessage{
		SenderDigits:      jidDigits(jid),
		SenderName:        strings.TrimSpace(p.Data.PushName),
		ProviderMessageID: p.Data.Key.ID,
		FromMe:            p.Data.Key.FromMe,
		IsGroup:           strings.HasSuffix(jid, "@g.us"),
	}
	if msg.SenderDigits == "" {
		return InboundMessage{}, false
	}

	// text lives in one of two places depending on the message kind
	msg.Text = p.Data.Message.Conversation
	if msg.Text == "" {
		msg.Text = p.Data.Message.ExtendedTextMessage.Text
	}

	switch {
	case p.Data.Message.ImageMessage.URL != "":
		msg.MediaURL = p.Data.Message.ImageMessage.URL
		if msg.Text == "" {
			msg.Text = p.Data.Message.ImageMessage.Caption
		}
	case p.Data.Message.AudioMessage.URL != "":
		msg.MediaURL = p.Data.Message.AudioMessage.URL
	case p.Data.Message.DocumentMessage.URL != "":
		msg.MediaURL = p.Data.Message.DocumentMessage.URL
		if msg.Text == "" {
			msg.Text = p.Data.Message.DocumentMessage.FileName
		}
	}

	return msg, true
}

// normalizeEventName maps Evolution's two event spellings
// ("messages.upsert" and "MESSAGES_UPSERT") onto one form.
func normalizeEventName(event string) string {
	return strings.ReplaceAll(strings.ToLower(event), "_", ".")
}

// jidDigits strips the WhatsApp JID domain and keeps the phone digits.
// "5511988887777@s.whatsapp.net" becomes "5511988887777".
func jidDigits(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at >= 0 {
		jid = jid[:at]
	}
	// device suffix, as in "5511988887777:12"
	if colon := strings.IndexByte(jid, ':'); colon >= 0 {
		jid = jid[:colon]
	}
	var b strings.Builder
	for _, r := range jid {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
