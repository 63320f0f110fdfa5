package model

import (
	"errors"

	"gorm.io/gorm"
)

type GetRecommendationOptions struct {
	OrderQuery  string
	Limit       int
	Offset      int
	QueryParams map[string]interface{}
}

// IsNotFound reports whether err means the row does not exist, without
// leaking the gorm sentinel to callers outside this package.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
