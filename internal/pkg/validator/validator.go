package validator

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validation
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// Numeric validation
var numericRegex = regexp.MustCompile(`^[0-9]+$`)

func IsNumeric(s string) bool {
	return numericRegex.MatchString(s)
}

// Date validation
func IsValidDate(dateStr string) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", dateStr)
	return date, err == nil
}

// Bank account numbers: 6-34 digits once spaces and dashes are removed.
func IsValidBankAccountNumber(account string) bool {
	account = NormalizeBankAccountNumber(account)
	if len(account) < 6 || len(account) > 34 {
		return false
	}
	return IsNumeric(account)
}

func NormalizeBankAccountNumber(account string) string {
	account = strings.ReplaceAll(account, " ", "")
	return strings.ReplaceAll(account, "-", "")
}

// ParsePeriod parses "month" and "year" strings into a payroll period pair.
func ParsePeriod(monthStr, yearStr string) (month, year int, ok bool) {
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	year, err = strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return 0, 0, false
	}
	return month, year, true
}

// Slice contains check
func IsInSlice(value string, slice []string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}
