package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type Source string

const (
	SourceCSVExport Source = "csv_export"
	SourceVendorAPI Source = "vendor_api"
)

func (s *Source) Scan(value interface{}) error {
	*s = Source(value.(string))
	return nil
}

func (s Source) Value() (driver.Value, error) {
	return string(s), nil
}

func ParseSource(s string) (Source, error) {
	switch normalizeLabel(s) {
	case "csvexport", "csv", "export":
		return SourceCSVExport, nil
	case "vendorapi", "vendor", "api":
		return SourceVendorAPI, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

type Category string

const (
	CategoryCost                  Category = "cost"
	CategorySecurity              Category = "security"
	CategoryReliability           Category = "reliability"
	CategoryOperationalExcellence Category = "operational_excellence"
	CategoryPerformance           Category = "performance"
)

// Categories lists every category in report display order.
var Categories = []Category{
	CategoryCost,
	CategorySecurity,
	CategoryReliability,
	CategoryOperationalExcellence,
	CategoryPerformance,
}

func (c *Category) Scan(value interface{}) error {
	*c = Category(value.(string))
	return nil
}

func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}

func (c Category) String() string {
	switch c {
	case CategoryCost:
		return "Cost"
	case CategorySecurity:
		return "Security"
	case CategoryReliability:
		return "Reliability"
	case CategoryOperationalExcellence:
		return "Operational excellence"
	case CategoryPerformance:
		return "Performance"
	}
	return "unknown"
}

// ParseCategory normalizes the category labels found in vendor exports.
// Older exports use "High Availability" for what the vendor now calls
// reliability.
func ParseCategory(s string) (Category, error) {
	switch normalizeLabel(s) {
	case "cost":
		return CategoryCost, nil
	case "security":
		return CategorySecurity, nil
	case "reliability", "highavailability":
		return CategoryReliability, nil
	case "operationalexcellence":
		return CategoryOperationalExcellence, nil
	case "performance":
		return CategoryPerformance, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

var Impacts = []Impact{ImpactHigh, ImpactMedium, ImpactLow}

func (i *Impact) Scan(value interface{}) error {
	*i = Impact(value.(string))
	return nil
}

func (i Impact) Value() (driver.Value, error) {
	return string(i), nil
}

func (i Impact) String() string {
	switch i {
	case ImpactHigh:
		return "High"
	case ImpactMedium:
		return "Medium"
	case ImpactLow:
		return "Low"
	}
	return "unknown"
}

func ParseImpact(s string) (Impact, error) {
	switch normalizeLabel(s) {
	case "high":
		return ImpactHigh, nil
	case "medium", "moderate":
		return ImpactMedium, nil
	case "low":
		return ImpactLow, nil
	}
	return "", fmt.Errorf("unknown business impact %q", s)
}

// ReservationKind identifies the purchase construct a cost recommendation
// refers to. The zero value means the recommendation is not tied to any
// reservation construct and is stored as NULL.
type ReservationKind string

const (
	ReservationNone     ReservationKind = ""
	ReservedInstance    ReservationKind = "reserved_instance"
	SavingsPlan         ReservationKind = "savings_plan"
	ReservedCapacity    ReservationKind = "reserved_capacity"
	CapacityReservation ReservationKind = "capacity_reservation"
)

func (r *ReservationKind) Scan(value interface{}) error {
	if value == nil {
		*r = ReservationNone
		return nil
	}
	*r = ReservationKind(value.(string))
	return nil
}

func (r ReservationKind) Value() (driver.Value, error) {
	if r == ReservationNone {
		return nil, nil
	}
	return string(r), nil
}

// SavingsEligible reports whether records of this kind count towards savings
// totals. Capacity reservations guarantee compute availability but carry no
// price benefit, so they are always excluded.
func (r ReservationKind) SavingsEligible() bool {
	return r != CapacityReservation
}

type OutputKind string

const (
	OutputHTML OutputKind = "html"
	OutputPDF  OutputKind = "pdf"
)

func (o *OutputKind) Scan(value interface{}) error {
	*o = OutputKind(value.(string))
	return nil
}

func (o OutputKind) Value() (driver.Value, error) {
	return string(o), nil
}

func ParseOutputKind(s string) (OutputKind, error) {
	switch normalizeLabel(s) {
	case "html":
		return OutputHTML, nil
	case "pdf":
		return OutputPDF, nil
	}
	return "", fmt.Errorf("unknown output kind %q", s)
}

type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

func (j *JobState) Scan(value interface{}) error {
	*j = JobState(value.(string))
	return nil
}

func (j JobState) Value() (driver.Value, error) {
	return string(j), nil
}

func (j JobState) Terminal() bool {
	return j == JobStateCompleted || j == JobStateFailed || j == JobStateCancelled
}

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch normalizeLabel(s) {
	case "day", "daily":
		return GranularityDay, nil
	case "week", "weekly":
		return GranularityWeek, nil
	case "month", "monthly":
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}
