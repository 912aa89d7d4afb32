package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"provcore/internal/archive"
	"provcore/pkg/domain"
)

const (
	actorHeader     = "X-Registry-Actor"
	requestIDHeader = "X-Request-ID"

	actorContextKey     = "registry.actor"
	requestIDContextKey = "registry.request_id"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

// writeError maps registry failures onto HTTP statuses. The registry's
// error messages are deterministic and safe to return; anything
// unrecognized becomes an opaque 500.
func writeError(c *gin.Context, err error) {
	var (
		notFound      domain.ErrNotFound
		notOwner      domain.ErrNotOwner
		recipient     domain.ErrRecipientNotAuthorized
		selfTransfer  domain.ErrSelfTransfer
		notAuthorized domain.ErrNotAuthorized
		adminOnly     domain.ErrUnauthorized
		alreadyAuthed domain.ErrAlreadyAuthorized
		invalidTarget domain.ErrInvalidTarget
		chainBroken   domain.ErrChainBroken
		ruleViolation domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeErrorCode(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.As(err, &notOwner):
		writeErrorCode(c, http.StatusForbidden, "NOT_OWNER", err.Error())
	case errors.As(err, &recipient):
		writeErrorCode(c, http.StatusConflict, "RECIPIENT_NOT_AUTHORIZED", err.Error())
	case errors.As(err, &selfTransfer):
		writeErrorCode(c, http.StatusBadRequest, "SELF_TRANSFER", err.Error())
	case errors.As(err, &notAuthorized):
		writeErrorCode(c, http.StatusForbidden, "NOT_AUTHORIZED", err.Error())
	case errors.As(err, &adminOnly):
		writeErrorCode(c, http.StatusForbidden, "ADMIN_ONLY", err.Error())
	case errors.As(err, &alreadyAuthed):
		writeErrorCode(c, http.StatusConflict, "ALREADY_AUTHORIZED", err.Error())
	case errors.As(err, &invalidTarget):
		writeErrorCode(c, http.StatusBadRequest, "INVALID_TARGET", err.Error())
	case errors.As(err, &chainBroken):
		writeErrorCode(c, http.StatusConflict, "CHAIN_BROKEN", err.Error())
	case errors.As(err, &ruleViolation):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code:    "RULE_VIOLATION",
			Message: err.Error(),
			Details: toViolationResponses(ruleViolation.Result.Violations),
		})
	case errors.Is(err, archive.ErrQueueFull):
		writeErrorCode(c, http.StatusServiceUnavailable, "ARCHIVE_QUEUE_FULL", err.Error())
	case errors.Is(err, archive.ErrNotConfigured):
		writeErrorCode(c, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", err.Error())
	default:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// actorMiddleware requires the caller identity header on mutating
// routes. The registry enforces authorization; the transport only
// establishes who is calling.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(actorHeader))
		if actor == "" {
			writeErrorCode(c, http.StatusUnauthorized, "MISSING_ACTOR", actorHeader+" header is required")
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// actorFrom returns the caller identity stored by actorMiddleware.
func actorFrom(c *gin.Context) string {
	return c.GetString(actorContextKey)
}

// requestIDMiddleware propagates X-Request-ID, minting one when the
// caller did not send it.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestID returns the request correlation id for the current call.
func requestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

// parseProductID reads the :id path parameter. Product ids are dense
// positive integers assigned by the registry.
func parseProductID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

type violationResponse struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

func toViolationResponses(violations []domain.Violation) []violationResponse {
	out := make([]violationResponse, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationResponse{
			Rule:     v.Rule,
			Severity: string(v.Severity),
			Message:  v.Message,
			Entity:   string(v.Entity),
			EntityID: v.EntityID,
		})
	}
	return out
}
