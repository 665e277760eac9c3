// Package announcement contains the announcement record emitted by a guidance session and its database access
package announcement

import (
	"fmt"
	"time"

	"github.com/OpenTransitTools/trainguide/foundation/database"
	"github.com/jmoiron/sqlx"
)

// Kind groups announcements by the rule that produced them
type Kind string

const (
	KindSession      Kind = "session"
	KindApproach     Kind = "approach"
	KindArrival      Kind = "arrival"
	KindNextStop     Kind = "next_stop"
	KindPass         Kind = "pass"
	KindCaution      Kind = "caution"
	KindReminder     Kind = "reminder"
	KindSwap         Kind = "swap"
	KindBoundary     Kind = "boundary"
	KindConfirmation Kind = "confirmation"
)

//Announcement is a single spoken or displayed message. Key is the deduplication identity, for example
//"arr200_S0105NE"
type Announcement struct {
	SessionId string `db:"session_id" json:"session_id"`
	Key       string `db:"announcement_key" json:"key"`
	Kind      Kind   `db:"kind" json:"kind"`
	//StationId is the station the announcement concerns, empty for session level messages
	StationId   string    `db:"station_id" json:"station_id"`
	TrainNumber string    `db:"train_number" json:"train_number"`
	Text        string    `db:"text" json:"text"`
	EmittedAt   time.Time `db:"emitted_at" json:"emitted_at"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

const schema = "create table if not exists announcement (" +
	"session_id varchar(64) not null, " +
	"announcement_key varchar(128) not null, " +
	"kind varchar(32) not null, " +
	"station_id varchar(32) not null, " +
	"train_number varchar(16) not null, " +
	"text varchar(256) not null, " +
	"emitted_at timestamp not null, " +
	"created_at timestamp not null)"

// EnsureSchema creates the announcement table when it does not exist
func EnsureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating announcement table: %w", err)
	}
	return nil
}

// Record saves an Announcement into the database
func Record(a *Announcement, db *sqlx.DB) error {

	a.CreatedAt = time.Now()

	statementString := "insert into announcement " +
		"(session_id, " +
		"announcement_key, " +
		"kind, " +
		"station_id, " +
		"train_number, " +
		"text, " +
		"emitted_at, " +
		"created_at) " +
		"values " +
		"(:session_id, " +
		":announcement_key, " +
		":kind, " +
		":station_id, " +
		":train_number, " +
		":text, " +
		":emitted_at, " +
		":created_at)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, a)
	return err
}

// RecentForSession returns up to limit announcements recorded for sessionId, newest first
func RecentForSession(db *sqlx.DB, sessionId string, limit int) ([]Announcement, error) {
	statementString := "select session_id, announcement_key, kind, station_id, train_number, text, " +
		"emitted_at, created_at from announcement " +
		"where session_id = :session_id " +
		"order by emitted_at desc " +
		"limit :limit"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"session_id": sessionId,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying announcements for session %s: %w", sessionId, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []Announcement
	for rows.Next() {
		var a Announcement
		if err = rows.StructScan(&a); err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
