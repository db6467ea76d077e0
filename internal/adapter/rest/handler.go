// Package rest exposes the flashcard and stats usecases over HTTP.
package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
	"github.com/eslsoft/studydeck/internal/usecase"
	"github.com/eslsoft/studydeck/pkg/filterexpr"
)

// Handler wires the HTTP routes to the usecases.
type Handler struct {
	cards usecase.FlashcardUsecase
	stats usecase.StatsUsecase
}

func NewHandler(cards usecase.FlashcardUsecase, stats usecase.StatsUsecase) *Handler {
	return &Handler{cards: cards, stats: stats}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	cards := api.Group("/flashcards")
	{
		cards.GET("", h.listFlashcards)
		cards.POST("", h.createFlashcard)
		cards.DELETE("", h.deleteAllFlashcards)
		cards.GET("/next/due", h.nextDueFlashcard)
		cards.POST("/answer", h.recordAnswer)
		cards.POST("/generate", h.generateFlashcards)
		cards.GET("/stats/overview", h.statsOverview)
		cards.GET("/:id", h.getFlashcard)
		cards.PUT("/:id", h.updateFlashcard)
		cards.DELETE("/:id", h.deleteFlashcard)
	}
	api.DELETE("/documents/:id/flashcards", h.deleteDocumentFlashcards)
}

var listFilterFields = []string{"subject", "tag"}
var listOrderKeys = []string{repository.OrderByCreatedAt, repository.OrderByNextReview}

// GET /api/flashcards
func (h *Handler) listFlashcards(c *gin.Context) {
	query := &repository.ListFlashcardQuery{
		Subject: c.Query("subject"),
		Tag:     c.Query("tag"),
	}
	if limit, err := queryInt32(c, "limit"); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	} else {
		query.Limit = limit
	}
	if offset, err := queryInt32(c, "offset"); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	} else {
		query.Offset = offset
	}

	preds, err := filterexpr.Parse(c.Query("filter"), listFilterFields)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	for _, pred := range preds {
		if pred.Op != filterexpr.OpEQ {
			respondError(c, http.StatusBadRequest,
				errors.New("only equality predicates are supported"))
			return
		}
		switch pred.Field {
		case "subject":
			query.Subject = pred.Value
		case "tag":
			query.Tag = pred.Value
		}
	}

	if ord, ok, err := filterexpr.ParseOrderBy(c.Query("order_by"), listOrderKeys); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	} else if ok {
		query.Order = repository.Order{Key: ord.Key, Desc: ord.Desc}
	}

	cards, total, err := h.cards.List(c.Request.Context(), query)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, listFlashcardsResponse{
		Flashcards: toFlashcardResponses(cards),
		Total:      total,
	})
}

// POST /api/flashcards
func (h *Handler) createFlashcard(c *gin.Context) {
	var req createFlashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	card, err := h.cards.Create(c.Request.Context(), &entity.Flashcard{
		Subject:    req.Subject,
		Question:   req.Question,
		Answer:     req.Answer,
		Difficulty: req.Difficulty,
		Tags:       req.Tags,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFlashcardResponse(card))
}

// GET /api/flashcards/:id
func (h *Handler) getFlashcard(c *gin.Context) {
	card, err := h.cards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlashcardResponse(card))
}

// PUT /api/flashcards/:id
func (h *Handler) updateFlashcard(c *gin.Context) {
	var req updateFlashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	card, err := h.cards.Update(c.Request.Context(), c.Param("id"), &usecase.FlashcardPatch{
		Question:   req.Question,
		Answer:     req.Answer,
		Difficulty: req.Difficulty,
		Tags:       req.Tags,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlashcardResponse(card))
}

// DELETE /api/flashcards/:id
func (h *Handler) deleteFlashcard(c *gin.Context) {
	if err := h.cards.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "flashcard deleted"})
}

// GET /api/flashcards/next/due
func (h *Handler) nextDueFlashcard(c *gin.Context) {
	card, err := h.cards.NextDue(c.Request.Context(), c.Query("subject"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	if card == nil {
		respondError(c, http.StatusNotFound, errors.New("no flashcards due for review"))
		return
	}
	c.JSON(http.StatusOK, toFlashcardResponse(card))
}

// POST /api/flashcards/answer
func (h *Handler) recordAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	card, err := h.cards.RecordAnswer(c.Request.Context(), req.FlashcardID, *req.Correct, req.TimeSpentSeconds)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"flashcard":   toFlashcardResponse(card),
		"next_review": card.NextReviewAt,
	})
}

// POST /api/flashcards/generate
func (h *Handler) generateFlashcards(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	cards := make([]usecase.GeneratedCard, 0, len(req.Cards))
	for _, card := range req.Cards {
		cards = append(cards, usecase.GeneratedCard{
			Question:   card.Question,
			Answer:     card.Answer,
			Difficulty: card.Difficulty,
			Tags:       card.Tags,
		})
	}

	result, err := h.cards.Generate(c.Request.Context(), req.DocumentID, req.Subject, cards)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGenerateResponse(result))
}

// DELETE /api/flashcards
func (h *Handler) deleteAllFlashcards(c *gin.Context) {
	deleted, err := h.cards.DeleteAll(c.Request.Context())
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
}

// DELETE /api/documents/:id/flashcards
func (h *Handler) deleteDocumentFlashcards(c *gin.Context) {
	deleted, err := h.cards.DeleteByDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
}

// GET /api/flashcards/stats/overview
func (h *Handler) statsOverview(c *gin.Context) {
	stats, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatsResponse(stats))
}

func queryInt32(c *gin.Context, name string) (int32, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return int32(v), nil
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondUsecaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrFlashcardNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, entity.ErrInvalidFlashcardID),
		errors.Is(err, entity.ErrInvalidFlashcardText),
		errors.Is(err, entity.ErrInvalidDifficulty),
		errors.Is(err, entity.ErrInvalidTag):
		respondError(c, http.StatusBadRequest, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}
