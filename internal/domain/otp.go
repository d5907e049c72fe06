package domain

import "time"

// OTPPurpose distinguishes codes issued for login from codes issued for signup.
type OTPPurpose string

const (
	OTPLogin  OTPPurpose = "login"
	OTPSignup OTPPurpose = "signup"
)

// OTPRecord is a one-time passcode sent to an email address.
// PK: email, SK: otp_id (monotonic ULID, so the newest record sorts last).
// ExpiresAt is a Unix timestamp used as DynamoDB TTL; ExpiresAtMs is the exact expiry checked on verify.
type OTPRecord struct {
	Email       string     `json:"email" dynamodbav:"email"`
	OTPID       string     `json:"otp_id" dynamodbav:"otp_id"`
	Code        string     `json:"-" dynamodbav:"code"`
	Purpose     OTPPurpose `json:"purpose" dynamodbav:"purpose"`
	ExpiresAt   int64      `json:"expires_at" dynamodbav:"expires_at"`
	ExpiresAtMs int64      `json:"-" dynamodbav:"expires_at_ms"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the record can no longer be used at instant now.
func (o *OTPRecord) Expired(now time.Time) bool {
	return now.UnixMilli() >= o.ExpiresAtMs
}
