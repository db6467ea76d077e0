package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
)

func newTestStatsUsecase(repo *fakeFlashcardRepo) *statsUsecase {
	u := NewStatsUsecase(repo).(*statsUsecase)
	u.clock = fixedClock(testNow)
	return u
}

func TestOverviewEmptyStore(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestStatsUsecase(repo)

	stats, err := u.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	want := entity.StudyStats{}
	if *stats != want {
		t.Fatalf("stats = %+v, want zero values", stats)
	}
}

func TestOverviewAccuracy(t *testing.T) {
	repo := newFakeFlashcardRepo()
	cards := newTestFlashcardUsecase(repo, nil)
	u := newTestStatsUsecase(repo)

	created, err := cards.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, correct := range []bool{true, true, true, false} {
		if _, err := cards.RecordAnswer(context.Background(), created.ID, correct, nil); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	stats, err := u.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if stats.AccuracyPercent != 75.0 {
		t.Fatalf("accuracy = %v, want 75.0", stats.AccuracyPercent)
	}
	if stats.TotalReviews != 4 {
		t.Fatalf("total reviews = %d, want 4", stats.TotalReviews)
	}
	if stats.TotalFlashcards != 1 {
		t.Fatalf("total flashcards = %d, want 1", stats.TotalFlashcards)
	}
}

func TestOverviewAccuracyRounding(t *testing.T) {
	repo := newFakeFlashcardRepo()
	cards := newTestFlashcardUsecase(repo, nil)
	u := newTestStatsUsecase(repo)

	created, err := cards.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 2 correct of 3 = 66.666..., rounded to one decimal.
	for _, correct := range []bool{true, true, false} {
		if _, err := cards.RecordAnswer(context.Background(), created.ID, correct, nil); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	stats, err := u.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if stats.AccuracyPercent != 66.7 {
		t.Fatalf("accuracy = %v, want 66.7", stats.AccuracyPercent)
	}
}

func TestOverviewCountsActiveDays(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestStatsUsecase(repo)

	card := &entity.Flashcard{ID: "c1", Subject: "math", Question: "q", Answer: "a", CreatedAt: testNow}
	if _, err := repo.Create(context.Background(), card); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.history = []entity.ReviewRecord{
		{ID: "r1", FlashcardID: "c1", ReviewedAt: testNow.AddDate(0, 0, -1), Correct: true},
		{ID: "r2", FlashcardID: "c1", ReviewedAt: testNow.AddDate(0, 0, -1).Add(time.Hour), Correct: false},
		{ID: "r3", FlashcardID: "c1", ReviewedAt: testNow.AddDate(0, 0, -5), Correct: true},
		// Outside the 30-day window, must not count.
		{ID: "r4", FlashcardID: "c1", ReviewedAt: testNow.AddDate(0, 0, -40), Correct: true},
	}

	stats, err := u.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if stats.StudyStreakDays != 2 {
		t.Fatalf("streak days = %d, want 2 distinct days", stats.StudyStreakDays)
	}
}
