package service

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// defaultSLABudget applies to categories missing from the budget table.
const defaultSLABudget = 72 * time.Hour

// slaBudgets fixes the resolution-time budget per category. Changing a budget
// only affects complaints created afterwards; stored deadlines are immutable.
var slaBudgets = map[domain.ComplaintCategory]time.Duration{
	domain.CategoryRoadInfrastructure: 48 * time.Hour,
	domain.CategoryWaterSupply:        24 * time.Hour,
	domain.CategoryElectricity:        12 * time.Hour,
	domain.CategorySanitationWaste:    24 * time.Hour,
	domain.CategoryStreetlight:        36 * time.Hour,
	domain.CategoryParks:              96 * time.Hour,
	domain.CategoryOther:              72 * time.Hour,
}

// SLABudget returns the resolution budget for a category, falling back to the
// default for unknown categories.
func SLABudget(category domain.ComplaintCategory) time.Duration {
	if budget, ok := slaBudgets[category]; ok {
		return budget
	}
	return defaultSLABudget
}

// ComputeSLADeadline derives the deadline purely from category and creation
// time.
func ComputeSLADeadline(category domain.ComplaintCategory, createdAt time.Time) time.Time {
	return createdAt.Add(SLABudget(category))
}

// IsSLABreached reports whether an overdue complaint counts as breached.
// Resolved and closed complaints are never breached regardless of timing.
func IsSLABreached(deadline time.Time, status domain.ComplaintStatus, now time.Time) bool {
	if status == domain.StatusResolved || status == domain.StatusClosed {
		return false
	}
	return now.After(deadline)
}

// SLARemaining returns the signed time left until the deadline, negative once
// the deadline has passed.
func SLARemaining(deadline, now time.Time) time.Duration {
	return deadline.Sub(now)
}
