package guidance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/OpenTransitTools/trainguide/foundation/httpclient"
	"github.com/nats-io/nats.go"
)

// FixSource yields position fixes, blocking until one is available or ctx is done
type FixSource interface {
	Next(ctx context.Context) (Fix, error)
}

//VehiclePositionSource polls a GTFS-RT vehicle positions feed for one vehicle
type VehiclePositionSource struct {
	log           *log.Logger
	client        *httpclient.Client
	url           string
	vehicleId     string
	pollEvery     time.Duration
	polled        bool
	lastTimestamp uint64
}

//NewVehiclePositionSource creates a VehiclePositionSource for vehicleId, matched against vehicle id or label
func NewVehiclePositionSource(log *log.Logger,
	client *httpclient.Client,
	url string,
	vehicleId string,
	pollEvery time.Duration) *VehiclePositionSource {
	return &VehiclePositionSource{
		log:       log,
		client:    client,
		url:       url,
		vehicleId: vehicleId,
		pollEvery: pollEvery,
	}
}

//Next polls the feed every pollEvery until it reports a new position for the vehicle.
//Feed errors are logged and the poll is retried
func (s *VehiclePositionSource) Next(ctx context.Context) (Fix, error) {
	for {
		if s.polled {
			timer := time.NewTimer(s.pollEvery)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Fix{}, ctx.Err()
			case <-timer.C:
			}
		}
		s.polled = true

		feed, err := fetchFeed(ctx, s.client, s.url)
		if err != nil {
			if ctx.Err() != nil {
				return Fix{}, ctx.Err()
			}
			s.log.Printf("error attempting to get vehicle positions. error:%v\n", err)
			continue
		}
		f, ts, ok := vehicleFix(feed, s.vehicleId)
		if !ok || ts == s.lastTimestamp {
			continue
		}
		s.lastTimestamp = ts
		return f, nil
	}
}

//NatsFixSource receives json encoded fixes on a NATS subject
type NatsFixSource struct {
	log *log.Logger
	sub *nats.Subscription
	ch  chan *nats.Msg
}

//NewNatsFixSource subscribes to subject on natsConn
func NewNatsFixSource(log *log.Logger, natsConn *nats.Conn, subject string) (*NatsFixSource, error) {
	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to fixes on subject:%s on nats: %v\n", subject, natsConn.Servers())
	sub, err := natsConn.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, fmt.Errorf("unable to subscribe to %s: %w", subject, err)
	}
	return &NatsFixSource{log: log, sub: sub, ch: ch}, nil
}

//Next returns the next decodable fix. Malformed messages are logged and skipped
func (s *NatsFixSource) Next(ctx context.Context) (Fix, error) {
	for {
		select {
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		case msg := <-s.ch:
			f, err := decodeFix(msg.Data)
			if err != nil {
				s.log.Printf("error parsing fix: %s, payload:%s", err, string(msg.Data))
				continue
			}
			return f, nil
		}
	}
}

//Close ends the subscription
func (s *NatsFixSource) Close() error {
	return s.sub.Unsubscribe()
}
