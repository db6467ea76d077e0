package entity

// StudyStats summarises overall study progress.
type StudyStats struct {
	TotalFlashcards int64
	DueNow          int64

	// AccuracyPercent is correct/(correct+incorrect)*100 over all cards,
	// rounded to one decimal. 0.0 when no reviews exist.
	AccuracyPercent float64

	// StudyStreakDays counts distinct calendar days with at least one
	// review within the trailing 30 days. The days need not be
	// consecutive, so "streak" overstates what is measured; the name is
	// kept for API compatibility.
	StudyStreakDays int64

	TotalReviews int64
}
