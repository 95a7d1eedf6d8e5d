// Package jobs implements background work that runs independently of HTTP
// request handling.
//
// # EventRetention
//
// EventRetention purges persisted security events once they are older than
// the configured retention:
//
//	job := jobs.NewEventRetention(db, jobs.RetentionConfig{
//	    MaxAge:   90 * 24 * time.Hour,
//	    Interval: time.Hour,
//	    Delay:    5 * time.Second,
//	})
//	job.Start()
//	defer job.Stop()
//
// Start and Stop are idempotent. RunOnce performs a single purge and is what
// tests and one-off maintenance call directly.
package jobs
