package models

import "time"

// SchedulerLock is a mongo-backed lease so only one running instance
// executes a given scheduled job at a time.
type SchedulerLock struct {
	JobName    string    `bson:"_id" json:"jobName"`
	Holder     string    `bson:"holder" json:"holder"`
	AcquiredAt time.Time `bson:"acquiredAt" json:"acquiredAt"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
}
