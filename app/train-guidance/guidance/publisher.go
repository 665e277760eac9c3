package guidance

import (
	"encoding/json"
	"log"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// AnnouncementSink receives announcements that passed the dedup gate
type AnnouncementSink interface {
	Publish(announcements []announcement.Announcement)
}

//Publisher takes announcements made by the engine and sends them to their destinations (log, NATS and database)
type Publisher struct {
	log              *log.Logger
	db               *sqlx.DB
	natsConnection   *nats.Conn
	subject          string
	recordToDatabase bool
	publishOverNats  bool
}

//MakePublisher creates a Publisher. A nil db or natsConnection disables that destination
func MakePublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	subject string) *Publisher {
	return &Publisher{
		log:              log,
		db:               db,
		natsConnection:   natsConnection,
		subject:          subject,
		recordToDatabase: db != nil,
		publishOverNats:  natsConnection != nil && subject != "",
	}
}

//Publish logs each announcement, then sends them over NATS and records them according to the configured destinations
func (p *Publisher) Publish(announcements []announcement.Announcement) {
	if len(announcements) == 0 {
		return
	}
	now := time.Now()
	for i := range announcements {
		announcements[i].CreatedAt = now
		a := announcements[i]
		p.log.Printf("announce [%s] %s", a.Key, a.Text)
	}
	if p.publishOverNats {
		p.sendOverNats(announcements)
	}
	if p.recordToDatabase {
		p.record(announcements)
	}
}

func (p *Publisher) sendOverNats(announcements []announcement.Announcement) {
	for _, a := range announcements {
		jsonData, err := json.Marshal(a)
		if err != nil {
			p.log.Printf("failed to marshal announcement %s in Publisher.sendOverNats, error:%v", a.Key, err)
			continue
		}
		err = p.natsConnection.Publish(p.subject, jsonData)
		if err != nil {
			p.log.Printf("failed to send announcement %s in Publisher.sendOverNats, error:%v", a.Key, err)
		}
	}
}

func (p *Publisher) record(announcements []announcement.Announcement) {
	for i := range announcements {
		err := announcement.Record(&announcements[i], p.db)
		if err != nil {
			p.log.Printf("Error saving announcement %+v. error: %v", announcements[i], err)
		}
	}
}
