package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// Result is the derived classification for one advisory record. It never
// carries a defaulted commitment term: when the text does not name one, the
// term stays unknown.
type Result struct {
	Category        types.Category
	Impact          types.Impact
	CommitmentTerm  types.CommitmentTerm
	ReservationKind types.ReservationKind
}

// Category rules are evaluated top to bottom and the first hit wins, so cost
// phrasing ("reduce cost by right-sizing") takes priority over the
// performance words that often appear in the same sentence.
var categoryRules = []struct {
	category types.Category
	keywords []string
}{
	{types.CategoryCost, []string{
		"cost", "saving", "reserved instance", "savings plan", "right-size",
		"rightsize", "underutilized", "under-utilized", "idle", "unused",
	}},
	{types.CategorySecurity, []string{
		"security", "vulnerab", "encrypt", "mfa", "multi-factor", "firewall",
		"threat", "certificate",
	}},
	{types.CategoryReliability, []string{
		"reliab", "availability", "redundan", "backup", "disaster",
		"resilien", "failover",
	}},
	{types.CategoryOperationalExcellence, []string{
		"operational", "monitor", "diagnostic", "logging", "governance",
		"tagging", "quota",
	}},
	{types.CategoryPerformance, []string{
		"performance", "latency", "throughput", "iops", "cpu", "memory",
	}},
}

var impactRules = []struct {
	impact   types.Impact
	keywords []string
}{
	{types.ImpactHigh, []string{
		"critical", "immediately", "severe", "high risk", "urgent",
		"significant saving",
	}},
	{types.ImpactLow, []string{
		"consider", "minor", "optional", "slight", "marginal",
	}},
}

// Reservation kinds are ordered so the specific "capacity reservation"
// phrasing is matched before the generic "reservation".
var reservationRules = []struct {
	kind     types.ReservationKind
	keywords []string
}{
	{types.CapacityReservation, []string{"capacity reservation", "on-demand capacity"}},
	{types.ReservedCapacity, []string{"reserved capacity"}},
	{types.SavingsPlan, []string{"savings plan"}},
	{types.ReservedInstance, []string{"reserved instance", "reserved vm", "reservation"}},
}

var (
	yearTermPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]?(?:year|yr)s?\b`)
	monthTermPattern = regexp.MustCompile(`(?i)\b(\d{1,3})[\s-]?months?\b`)
)

// Classify derives category, impact, commitment term and reservation kind
// from free-form recommendation text. Same input always yields the same
// result; there is no randomness and no external lookup.
func Classify(description string, benefits string) Result {
	text := strings.ToLower(description + " " + benefits)
	return Result{
		Category:        classifyCategory(text),
		Impact:          classifyImpact(text),
		CommitmentTerm:  ExtractTerm(text),
		ReservationKind: classifyReservation(text),
	}
}

func classifyCategory(text string) types.Category {
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return types.CategoryOperationalExcellence
}

func classifyImpact(text string) types.Impact {
	for _, rule := range impactRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.impact
			}
		}
	}
	return types.ImpactMedium
}

func classifyReservation(text string) types.ReservationKind {
	for _, rule := range reservationRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.kind
			}
		}
	}
	return types.ReservationNone
}

// ExtractTerm pattern-matches explicit "N-year" or "N month" phrasing.
// Vendors only sell 1 and 3 year commitments, so anything else stays
// unknown rather than being guessed at.
func ExtractTerm(text string) types.CommitmentTerm {
	if m := yearTermPattern.FindStringSubmatch(text); m != nil {
		years, err := strconv.Atoi(m[1])
		if err == nil && (years == 1 || years == 3) {
			return types.TermOfYears(int16(years))
		}
		return types.TermUnknown
	}
	if m := monthTermPattern.FindStringSubmatch(text); m != nil {
		months, err := strconv.Atoi(m[1])
		if err == nil && (months == 12 || months == 36) {
			return types.TermOfYears(int16(months / 12))
		}
	}
	return types.TermUnknown
}
