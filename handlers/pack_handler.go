package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quizgame/services"
)

const maxYAMLBody = 1 << 20

type PackHandler struct {
	packService *services.PackService
	log         *zap.Logger
}

func NewPackHandler(packService *services.PackService, log *zap.Logger) *PackHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PackHandler{packService: packService, log: log}
}

func (h *PackHandler) CreatePack(c *gin.Context) {
	var req services.CreatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	pack, err := h.packService.CreatePack(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, pack)
}

func (h *PackHandler) CreatePackFromYAML(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxYAMLBody+1))
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}
	if len(body) == 0 {
		badRequest(c, "request body is empty")
		return
	}
	if len(body) > maxYAMLBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	imported, err := h.packService.CreatePackFromYAML(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, imported)
}

func (h *PackHandler) GetAllPacks(c *gin.Context) {
	packs, err := h.packService.GetAllPacks(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, packs)
}

func (h *PackHandler) GetPackByID(c *gin.Context) {
	id, ok := queryUUID(c, "id")
	if !ok {
		return
	}

	pack, err := h.packService.GetPackByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, pack)
}

func (h *PackHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	question, err := h.packService.CreateQuestion(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (h *PackHandler) GetQuestionByID(c *gin.Context) {
	id, ok := queryUUID(c, "id")
	if !ok {
		return
	}

	question, err := h.packService.GetQuestionByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

func (h *PackHandler) GetQuestionsByPackID(c *gin.Context) {
	packID, ok := queryUUID(c, "pack_id")
	if !ok {
		return
	}

	questions, err := h.packService.GetQuestionsByPackID(c.Request.Context(), packID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

func (h *PackHandler) CreateVariant(c *gin.Context) {
	var req services.CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	variant, err := h.packService.CreateVariant(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, variant)
}

func (h *PackHandler) GetVariantByID(c *gin.Context) {
	id, ok := queryUUID(c, "id")
	if !ok {
		return
	}

	variant, err := h.packService.GetVariantByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, variant)
}

func (h *PackHandler) GetVariantsByQuestionID(c *gin.Context) {
	questionID, ok := queryUUID(c, "question_id")
	if !ok {
		return
	}

	variants, err := h.packService.GetVariantsByQuestionID(c.Request.Context(), questionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, variants)
}
