package core

import (
	"errors"
	"time"
)

type (
	// User is a row of the credentials table.
	User struct {
		ID          int64
		Username    string
		Password    string // bcrypt hash, or a legacy plaintext value
		DisplayName string
		Role        string
	}

	// Identity is what a successful login yields.
	Identity struct {
		Username    string
		DisplayName string
		Role        string
	}

	// Asset is one inventory record. Year is nil when the acquisition date
	// could not be read.
	Asset struct {
		ID        int64
		Name      string
		Number    string
		Year      *int
		Value     int64
		Condition string
		Address   string
		Type      string
		Region    string
		SubRegion string
		Area      float64
	}

	// ImportRecord describes a committed full-replace import.
	ImportRecord struct {
		ID         string
		Rows       int
		Warnings   int
		Source     string
		ImportedBy string
		ImportedAt time.Time
	}
)

var (
	ErrAuthFailure       = errors.New("invalid username or password")
	ErrStoreUnavailable  = errors.New("asset store unavailable")
	ErrStoreWriteFailure = errors.New("asset store write failed")
	ErrNoDigits          = errors.New("no digits in value")
	ErrValueOverflow     = errors.New("value out of range")
)

const (
	// MinYear is the earliest acquisition year accepted on import.
	MinYear = 1800
)

// ValidYear reports whether y is a plausible acquisition year relative to now.
func ValidYear(y int, now time.Time) bool {
	return y >= MinYear && y <= now.Year()+1
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
