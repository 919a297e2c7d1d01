package enums

import "fmt"

// MpesaStatus is the state of an STK push transaction.
type MpesaStatus string

const (
	MpesaStatusPending         MpesaStatus = "PENDING"
	MpesaStatusCompleted       MpesaStatus = "COMPLETED"
	MpesaStatusFailed          MpesaStatus = "FAILED"
	MpesaStatusCallbackNoMatch MpesaStatus = "CALLBACK_NO_MATCH"
)

var validMpesaStatuses = []MpesaStatus{
	MpesaStatusPending,
	MpesaStatusCompleted,
	MpesaStatusFailed,
	MpesaStatusCallbackNoMatch,
}

// String implements fmt.Stringer.
func (m MpesaStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MpesaStatus.
func (m MpesaStatus) IsValid() bool {
	for _, candidate := range validMpesaStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMpesaStatus converts raw input into a MpesaStatus.
func ParseMpesaStatus(value string) (MpesaStatus, error) {
	for _, candidate := range validMpesaStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mpesa status %q", value)
}
