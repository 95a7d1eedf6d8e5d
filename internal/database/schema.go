package database

import (
	"context"
	"fmt"
)

// Migrations are applied in order by Migrate. Each statement is idempotent.
var Migrations = []string{
	`DEFINE TABLE IF NOT EXISTS security_event SCHEMAFULL;
DEFINE FIELD IF NOT EXISTS event_id   ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS timestamp  ON security_event TYPE datetime;
DEFINE FIELD IF NOT EXISTS category   ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS ip         ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS user_agent ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS url        ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS method     ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS request_id ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS user_id    ON security_event TYPE string;
DEFINE FIELD IF NOT EXISTS detail     ON security_event TYPE string;
DEFINE INDEX IF NOT EXISTS security_event_category ON security_event FIELDS category, timestamp;
DEFINE INDEX IF NOT EXISTS security_event_timestamp ON security_event FIELDS timestamp;`,
}

// Migrate applies Migrations to db.
func Migrate(ctx context.Context, db Database) error {
	for i, m := range Migrations {
		if err := db.Execute(ctx, m, nil); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
