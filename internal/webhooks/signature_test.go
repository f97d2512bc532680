package webhooks

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSignBodyVerifiesRoundTrip(t *testing.T) {
	body := []byte(`{"action":"lead_create","phone":"+5511988887777"}`)
	sig := SignBody("topsecret", body)

	if !VerifySignature("topsecret", body, sig) {
		t.Fatal("expected signature to verify under the signing secret")
	}
	if VerifySignature("othersecret", body, sig) {
		t.Fatal("signature verified under a different secret")
	}
	if VerifySignature("topsecret", []byte(`{"tampered":true}`), sig) {
		t.Fatal("signature verified over a tampered body")
	}
}

func TestVerifySignatureRejectsGarbage(t *testing.T) {
	if VerifySignature("secret", []byte("body"), "not-hex") {
		t.Fatal("non-hex signature verified")
	}
	if VerifySignature("secret", []byte("body"), "") {
		t.Fatal("empty signature verified")
	}
}

func newSignedRequest(t *testing.T, secret string, body []byte, tamper bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/n8n", bytes.NewReader(body))
	sig := SignBody(secret, body)
	if tamper {
		sig = SignBody("wrong-"+secret, body)
	}
	req.Header.Set("X-Signature", "sha256="+sig)
	return req
}

func runSignatureMiddleware(secret string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()

	handled := false
	engine := gin.New()
	engine.POST("/webhooks/n8n", SignatureAuthMiddleware(secret), func(c *gin.Context) {
		handled = true
		c.Status(http.StatusOK)
	})
	engine.ServeHTTP(rec, req)
	return rec, handled
}

func TestSignatureMiddlewareAcceptsValidSignature(t *testing.T) {
	body := []byte(`{"action":"lead_create"}`)
	rec, handled := runSignatureMiddleware("shared", newSignedRequest(t, "shared", body, false))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !handled {
		t.Fatal("handler did not run for a correctly signed request")
	}
}

func TestSignatureMiddlewareRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"lead_create"}`)
	rec, handled := runSignatureMiddleware("shared", newSignedRequest(t, "shared", body, true))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if handled {
		t.Fatal("handler ran despite a forged signature")
	}
}

func TestSignatureMiddlewareRejectsMissingSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/n8n", bytes.NewReader([]byte(`{}`)))
	rec, handled := runSignatureMiddleware("shared", req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if handled {
		t.Fatal("handler ran without a signature")
	}
}

func TestSignatureMiddlewareRejectsWhenSecretUnconfigured(t *testing.T) {
	body := []byte(`{}`)
	rec, handled := runSignatureMiddleware("", newSignedRequest(t, "", body, false))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no secret is configured, got %d", rec.Code)
	}
	if handled {
		t.Fatal("handler ran with no secret configured")
	}
}

func TestSignatureMiddlewareAcceptsBarePrefix(t *testing.T) {
	// callers may send the digest without the sha256= prefix
	body := []byte(`{"action":"lead_schedule"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/n8n", bytes.NewReader(body))
	req.Header.Set("X-Signature", SignBody("shared", body))

	rec, handled := runSignatureMiddleware("shared", req)
	if rec.Code != http.StatusOK || !handled {
		t.Fatalf("expected unprefixed signature to verify, got %d", rec.Code)
	}
}
