package rest

import (
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/usecase"
)

type createFlashcardRequest struct {
	Subject    string   `json:"subject" binding:"required"`
	Question   string   `json:"question" binding:"required"`
	Answer     string   `json:"answer" binding:"required"`
	Difficulty int32    `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type updateFlashcardRequest struct {
	Question   *string  `json:"question"`
	Answer     *string  `json:"answer"`
	Difficulty *int32   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type answerRequest struct {
	FlashcardID      string `json:"flashcard_id" binding:"required"`
	Correct          *bool  `json:"correct" binding:"required"`
	TimeSpentSeconds *int32 `json:"time_spent_seconds"`
}

type generateRequest struct {
	DocumentID string              `json:"document_id" binding:"required"`
	Subject    string              `json:"subject" binding:"required"`
	Cards      []generateCardInput `json:"cards" binding:"required"`
}

type generateCardInput struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Difficulty int32    `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type flashcardResponse struct {
	ID               string     `json:"id"`
	Subject          string     `json:"subject"`
	Question         string     `json:"question"`
	Answer           string     `json:"answer"`
	Difficulty       int32      `json:"difficulty"`
	Tags             []string   `json:"tags"`
	DocumentID       string     `json:"document_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastReviewed     *time.Time `json:"last_reviewed"`
	NextReview       *time.Time `json:"next_review"`
	CorrectCount     int64      `json:"correct_count"`
	IncorrectCount   int64      `json:"incorrect_count"`
	EasinessFactor   float64    `json:"easiness_factor"`
	IntervalDays     int32      `json:"interval_days"`
	RepetitionNumber int32      `json:"repetition_number"`
}

type listFlashcardsResponse struct {
	Flashcards []flashcardResponse `json:"flashcards"`
	Total      int64               `json:"total"`
}

type generateResponse struct {
	Flashcards []flashcardResponse `json:"flashcards"`
	Skipped    []string            `json:"skipped,omitempty"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type statsResponse struct {
	TotalFlashcards int64   `json:"total_flashcards"`
	DueToday        int64   `json:"due_today"`
	Accuracy        float64 `json:"accuracy"`
	StudyStreakDays int64   `json:"study_streak_days"`
	TotalReviews    int64   `json:"total_reviews"`
}

func toFlashcardResponse(card *entity.Flashcard) flashcardResponse {
	tags := card.Tags
	if tags == nil {
		tags = []string{}
	}
	return flashcardResponse{
		ID:               card.ID,
		Subject:          card.Subject,
		Question:         card.Question,
		Answer:           card.Answer,
		Difficulty:       card.Difficulty,
		Tags:             tags,
		DocumentID:       card.DocumentID,
		CreatedAt:        card.CreatedAt,
		LastReviewed:     card.LastReviewedAt,
		NextReview:       card.NextReviewAt,
		CorrectCount:     card.CorrectCount,
		IncorrectCount:   card.IncorrectCount,
		EasinessFactor:   card.EasinessFactor,
		IntervalDays:     card.IntervalDays,
		RepetitionNumber: card.RepetitionNumber,
	}
}

func toFlashcardResponses(cards []entity.Flashcard) []flashcardResponse {
	out := make([]flashcardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, toFlashcardResponse(&cards[i]))
	}
	return out
}

func toStatsResponse(stats *entity.StudyStats) statsResponse {
	return statsResponse{
		TotalFlashcards: stats.TotalFlashcards,
		DueToday:        stats.DueNow,
		Accuracy:        stats.AccuracyPercent,
		StudyStreakDays: stats.StudyStreakDays,
		TotalReviews:    stats.TotalReviews,
	}
}

func toGenerateResponse(result *usecase.GenerateResult) generateResponse {
	resp := generateResponse{Flashcards: toFlashcardResponses(result.Created)}
	for _, err := range result.Errors {
		resp.Skipped = append(resp.Skipped, err.Error())
	}
	return resp
}
