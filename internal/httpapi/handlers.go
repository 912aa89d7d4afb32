package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"provcore/pkg/domain"
)

func (s *Server) handleRegisterProduct(c *gin.Context) {
	actor := actorFrom(c)
	var req struct {
		Name           string   `json:"name"`
		MaterialType   string   `json:"material_type"`
		Origin         string   `json:"origin"`
		Price          float64  `json:"price"`
		Certifications []string `json:"certifications"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.Name == "" || req.MaterialType == "" || req.Origin == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "name, material_type, origin are required")
		return
	}
	product, res, err := s.service.RegisterProduct(c.Request.Context(), actor, domain.ProductInput{
		Name:           req.Name,
		MaterialType:   req.MaterialType,
		Origin:         req.Origin,
		Price:          req.Price,
		Certifications: req.Certifications,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	payload := gin.H{"product": product}
	if len(res.Violations) > 0 {
		payload["violations"] = toViolationResponses(res.Violations)
	}
	c.JSON(http.StatusCreated, payload)
}

func (s *Server) handleTransferProduct(c *gin.Context) {
	actor := actorFrom(c)
	id, ok := parseProductID(c)
	if !ok {
		return
	}
	var req struct {
		To       string `json:"to"`
		Location string `json:"location"`
		Action   string `json:"action"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.To == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "to is required")
		return
	}
	product, res, err := s.service.TransferProduct(c.Request.Context(), actor, id, domain.TransferInput{
		To:       req.To,
		Location: req.Location,
		Action:   req.Action,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	payload := gin.H{"product": product}
	if len(res.Violations) > 0 {
		payload["violations"] = toViolationResponses(res.Violations)
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleGetProduct(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}
	product, err := s.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	id, ok := parseProductID(c)
	if !ok {
		return
	}
	history, err := s.service.GetProductHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "steps": history})
}

// handleVerifyProduct returns the verification bundle: the product,
// its full history, and the hash-chain verdict. The route is public
// and rate limited per client.
func (s *Server) handleVerifyProduct(c *gin.Context) {
	if !s.enforceRateLimit(c, "verify") {
		return
	}
	id, ok := parseProductID(c)
	if !ok {
		return
	}
	verification, err := s.service.VerifyProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func (s *Server) handleTotalProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total": s.service.GetTotalProducts(c.Request.Context())})
}

func (s *Server) handleListParticipants(c *gin.Context) {
	participants := s.service.ListParticipants(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"participants": participants, "count": len(participants)})
}

func (s *Server) handleGetParticipant(c *gin.Context) {
	identity := c.Param("identity")
	participant, ok := s.service.GetParticipant(c.Request.Context(), identity)
	if !ok {
		writeErrorCode(c, http.StatusNotFound, "PARTICIPANT_NOT_FOUND", fmt.Sprintf("participant %q is not known", identity))
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": participant})
}

func (s *Server) handleAuthorizeParticipant(c *gin.Context) {
	actor := actorFrom(c)
	var req struct {
		Identity string `json:"identity"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	participant, res, err := s.service.AuthorizeParticipant(c.Request.Context(), actor, req.Identity, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	payload := gin.H{"participant": participant}
	if len(res.Violations) > 0 {
		payload["violations"] = toViolationResponses(res.Violations)
	}
	c.JSON(http.StatusCreated, payload)
}

func (s *Server) handleArchiveProduct(c *gin.Context) {
	actor := actorFrom(c)
	id, ok := parseProductID(c)
	if !ok {
		return
	}
	if s.archiver == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "archiving is not enabled")
		return
	}
	record, err := s.archiver.Enqueue(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": record})
}

func (s *Server) handleGetArchiveJob(c *gin.Context) {
	if s.archiver == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "archiving is not enabled")
		return
	}
	id := c.Param("id")
	record, ok := s.archiver.Get(id)
	if !ok {
		writeErrorCode(c, http.StatusNotFound, "JOB_NOT_FOUND", fmt.Sprintf("archive job %q is not known", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": record})
}
