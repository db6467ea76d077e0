package usecase

import (
	"context"
	"math"
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
)

// StatsUsecase assembles the study progress overview.
type StatsUsecase interface {
	Overview(ctx context.Context) (*entity.StudyStats, error)
}

type statsUsecase struct {
	repo  repository.FlashcardRepository
	clock func() time.Time
}

func NewStatsUsecase(repo repository.FlashcardRepository) StatsUsecase {
	return &statsUsecase{repo: repo, clock: time.Now}
}

func (u *statsUsecase) Overview(ctx context.Context) (*entity.StudyStats, error) {
	agg, err := u.repo.Stats(ctx, u.clock().UTC())
	if err != nil {
		return nil, err
	}

	total := agg.TotalCorrect + agg.TotalIncorrect
	accuracy := 0.0
	if total > 0 {
		accuracy = math.Round(float64(agg.TotalCorrect)/float64(total)*1000) / 10
	}

	return &entity.StudyStats{
		TotalFlashcards: agg.TotalFlashcards,
		DueNow:          agg.DueNow,
		AccuracyPercent: accuracy,
		StudyStreakDays: agg.ActiveDays,
		TotalReviews:    total,
	}, nil
}
