package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	StatusNew        ComplaintStatus = "NEW"
	StatusAssigned   ComplaintStatus = "ASSIGNED"
	StatusInProgress ComplaintStatus = "IN_PROGRESS"
	StatusResolved   ComplaintStatus = "RESOLVED"
	StatusClosed     ComplaintStatus = "CLOSED"
	StatusRejected   ComplaintStatus = "REJECTED"
)

// ValidStatus reports whether s is a member of the status enumeration.
func ValidStatus(s ComplaintStatus) bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// ComplaintCategory classifies a complaint for routing and SLA budgeting.
type ComplaintCategory string

const (
	CategoryRoadInfrastructure ComplaintCategory = "ROAD_INFRASTRUCTURE"
	CategoryWaterSupply        ComplaintCategory = "WATER_SUPPLY"
	CategoryElectricity        ComplaintCategory = "ELECTRICITY"
	CategorySanitationWaste    ComplaintCategory = "SANITATION_WASTE"
	CategoryStreetlight        ComplaintCategory = "STREETLIGHT"
	CategoryParks              ComplaintCategory = "PARKS_PLAYGROUNDS"
	CategoryOther              ComplaintCategory = "OTHER"
)

// ValidCategory reports whether c is a member of the category enumeration.
func ValidCategory(c ComplaintCategory) bool {
	switch c {
	case CategoryRoadInfrastructure, CategoryWaterSupply, CategoryElectricity,
		CategorySanitationWaste, CategoryStreetlight, CategoryParks, CategoryOther:
		return true
	}
	return false
}

// Complaint is the aggregate for citizen grievances. Status-bearing fields are
// mutated only through the lifecycle service; Version backs the
// compare-and-swap update that rejects lost-update races.
type Complaint struct {
	ID              string
	Reference       string
	CitizenID       string
	Category        ComplaintCategory
	Title           string
	Description     string
	Status          ComplaintStatus
	AssigneeID      *string
	AssignedAt      *time.Time
	SLADeadline     time.Time
	ResolvedAt      *time.Time
	IsSLAMet        *bool
	ResolutionProof []string
	ResolutionNotes string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Open reports whether the complaint still counts against its SLA deadline.
func (c *Complaint) Open() bool {
	return c.Status != StatusResolved && c.Status != StatusClosed && c.Status != StatusRejected
}

// StatusHistoryEntry is one immutable row of the append-only status trail.
// The last entry's Status always equals the complaint's current status.
type StatusHistoryEntry struct {
	ID            string
	ComplaintID   string
	Status        ComplaintStatus
	ChangedByID   string
	ChangedByRole Role
	Notes         string
	ChangedAt     time.Time
}

// OfficerComment is a progress note added while a complaint is IN_PROGRESS.
type OfficerComment struct {
	ID          string
	ComplaintID string
	Comment     string
	AddedByID   string
	AddedAt     time.Time
}
