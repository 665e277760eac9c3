package guidance

import (
	"context"
	"log"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/topology"
	"github.com/OpenTransitTools/trainguide/foundation/httpclient"
	"github.com/bluele/gcache"
)

// LookupRequest asks the delay feed about the current train
type LookupRequest struct {
	TrainNumber string
	StationId   string
	LineId      string
	Direction   topology.Direction
}

// LookupResult is what the delay feed knows about a train. A nil DelayMinutes means unknown
type LookupResult struct {
	TrainNumber        string
	DelayMinutes       *int
	StationName        string
	ScheduledDeparture *time.Time
	UpdatedAt          time.Time
}

// DelayLookup answers delay lookups. Implementations must honor ctx cancellation
type DelayLookup interface {
	Lookup(ctx context.Context, req LookupRequest) (LookupResult, error)
}

const lookupCacheSize = 64

//TripUpdateLookup reads delays from a GTFS-RT trip updates feed, caching answers for a short time
type TripUpdateLookup struct {
	log    *log.Logger
	client *httpclient.Client
	url    string
	topo   *topology.Topology
	cache  gcache.Cache
}

//NewTripUpdateLookup creates a TripUpdateLookup whose answers are reused for ttl
func NewTripUpdateLookup(log *log.Logger,
	client *httpclient.Client,
	url string,
	topo *topology.Topology,
	ttl time.Duration) *TripUpdateLookup {
	return &TripUpdateLookup{
		log:    log,
		client: client,
		url:    url,
		topo:   topo,
		cache:  gcache.New(lookupCacheSize).LRU().Expiration(ttl).Build(),
	}
}

//Lookup returns the delay of req.TrainNumber. A train missing from the feed is not an error, its delay is unknown
func (l *TripUpdateLookup) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	cacheKey := req.TrainNumber + "|" + req.StationId
	if cached, err := l.cache.Get(cacheKey); err == nil {
		return cached.(LookupResult), nil
	}
	feed, err := fetchFeed(ctx, l.client, l.url)
	if err != nil {
		return LookupResult{TrainNumber: req.TrainNumber}, err
	}
	result := LookupResult{TrainNumber: req.TrainNumber, UpdatedAt: time.Now()}
	if d, ok := tripDelay(feed, req.TrainNumber, req.StationId); ok {
		result.DelayMinutes = d.DelayMinutes
		result.ScheduledDeparture = d.ScheduledDeparture
		if d.StationId != "" {
			result.StationName = l.topo.StationName(d.StationId)
		}
	}
	if err := l.cache.Set(cacheKey, result); err != nil {
		l.log.Printf("unable to cache delay lookup for %s: %v", req.TrainNumber, err)
	}
	return result, nil
}
