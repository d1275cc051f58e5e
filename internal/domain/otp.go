package domain

import "time"

// OtpChallenge is the single active one-time-code challenge for an email.
// PK: email. A new challenge overwrites the previous row.
// ExpiresAt is the authoritative expiry; TTL is the same instant rounded up
// to Unix seconds for DynamoDB's TTL sweeper.
type OtpChallenge struct {
	Email       string    `json:"email" dynamodbav:"email"`
	ChallengeID string    `json:"challenge_id" dynamodbav:"challenge_id"`
	CodeHash    string    `json:"-" dynamodbav:"code_hash"`
	Attempts    int       `json:"attempts" dynamodbav:"attempts"`
	ExpiresAt   time.Time `json:"expires_at" dynamodbav:"expires_at"`
	TTL         int64     `json:"-" dynamodbav:"ttl"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Expired reports whether the challenge is no longer usable at now.
func (c *OtpChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TTLSeconds rounds t up to whole Unix seconds so the sweeper never reaps a
// row before ExpiresAt.
func TTLSeconds(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}
