package webhooks

import (
	"errors"
	"net/http"
	"time"

	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateKeyRequest names a new webhook API key.
type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// APIKeyResponse is the key metadata returned to operators. The plaintext
// key appears only in the creation response.
type APIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleCreateKey issues a new webhook API key for the caller's tenant.
// POST /api/v1/webhook-keys
func (h *Handler) HandleCreateKey(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate key", nil)
		return
	}

	key, err := h.repo.Create(c.Request.Context(), tenantID, req.Name, hash, prefix)
	if err != nil {
		h.log.DatabaseError("webhooks.CreateKey", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to store key", nil)
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"key":    plaintext, // shown once, never retrievable again
		"record": toKeyResponse(key),
	})
}

// HandleListKeys lists the tenant's webhook API keys.
// GET /api/v1/webhook-keys
func (h *Handler) HandleListKeys(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	keys, err := h.repo.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.log.DatabaseError("webhooks.ListKeys", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to list keys", nil)
		return
	}

	out := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, toKeyResponse(key))
	}
	httpkit.OK(c, out)
}

// HandleRevokeKey deactivates a webhook API key.
// DELETE /api/v1/webhook-keys/:id
func (h *Handler) HandleRevokeKey(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}

	if err := h.repo.Revoke(c.Request.Context(), keyID, tenantID); err != nil {
		if errors.Is(err, ErrAPIKeyNotFound) {
			httpkit.Error(c, http.StatusNotFound, "key not found", nil)
			return
		}
		h.log.DatabaseError("webhooks.RevokeKey", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to revoke key", nil)
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

func toKeyResponse(key APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt,
	}
}

func requireTenant(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusForbidden, "no tenant context", nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}
