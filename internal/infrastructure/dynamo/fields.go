package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID      = "user_id"
	fieldEmail       = "email"
	fieldUsername    = "username"
	fieldUpdatedAt   = "updated_at"
	fieldOTPID       = "otp_id"
	fieldCode        = "code"
	fieldPurpose     = "purpose"
	fieldExpiresAt   = "expires_at"
	fieldExpiresAtMs = "expires_at_ms"

	indexEmail    = "email-index"
	indexUsername = "username-index"

	// Guard items share the users table; they hold only user_id so they stay out of the GSIs.
	guardEmailPrefix    = "email#"
	guardUsernamePrefix = "username#"
)
