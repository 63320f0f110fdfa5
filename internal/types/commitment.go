package types

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// CommitmentTerm is the purchase commitment length of a reservation
// recommendation. The term is either known (a whole number of years) or
// unknown; the zero value is unknown and is persisted as NULL. There is no
// default term, so multi-year projections must check Known before using it.
type CommitmentTerm struct {
	years int16
	known bool
}

var TermUnknown = CommitmentTerm{}

func TermOfYears(years int16) CommitmentTerm {
	return CommitmentTerm{years: years, known: true}
}

func (t CommitmentTerm) Known() bool {
	return t.known
}

// Years returns the committed term length. The second return is false when
// the term is unknown and the first value must not be used.
func (t CommitmentTerm) Years() (int16, bool) {
	return t.years, t.known
}

func (t *CommitmentTerm) Scan(value interface{}) error {
	if value == nil {
		*t = TermUnknown
		return nil
	}
	switch v := value.(type) {
	case int64:
		*t = TermOfYears(int16(v))
	case int32:
		*t = TermOfYears(int16(v))
	default:
		return fmt.Errorf("cannot scan %T into CommitmentTerm", value)
	}
	return nil
}

func (t CommitmentTerm) Value() (driver.Value, error) {
	if !t.known {
		return nil, nil
	}
	return int64(t.years), nil
}

func (t CommitmentTerm) MarshalJSON() ([]byte, error) {
	if !t.known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(t.years))), nil
}

func (t *CommitmentTerm) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TermUnknown
		return nil
	}
	years, err := strconv.ParseInt(string(data), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid commitment term %q: %w", data, err)
	}
	*t = TermOfYears(int16(years))
	return nil
}

func (t CommitmentTerm) String() string {
	if !t.known {
		return "unknown"
	}
	return fmt.Sprintf("%d-year", t.years)
}
