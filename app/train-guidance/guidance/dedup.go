package guidance

import (
	"time"
)

const (
	// SessionStartKey is the one key delivered during the start grace period
	SessionStartKey = "session_start"

	dedupCooldown   = 30 * time.Second
	startGrace      = 10 * time.Second
	maxRememberKeys = 256
)

//DedupGate delivers each announcement key at most once per cooldown window, and nothing while the session is
//inactive or settling after start
type DedupGate struct {
	lastFired map[string]time.Time
	active    bool
	startedAt time.Time
}

//NewDedupGate creates an inactive DedupGate
func NewDedupGate() *DedupGate {
	return &DedupGate{lastFired: make(map[string]time.Time)}
}

//Start activates the gate, the start grace period runs from now
func (g *DedupGate) Start(now time.Time) {
	g.active = true
	g.startedAt = now
}

//Stop deactivates the gate, nothing is delivered until Start is called again
func (g *DedupGate) Stop() {
	g.active = false
}

//Allowed returns true if key may be delivered at now, without recording it
func (g *DedupGate) Allowed(key string, now time.Time) bool {
	if !g.active {
		return false
	}
	if key != SessionStartKey && now.Sub(g.startedAt) < startGrace {
		return false
	}
	last, fired := g.lastFired[key]
	return !fired || now.Sub(last) >= dedupCooldown
}

//Record marks key as delivered at now
func (g *DedupGate) Record(key string, now time.Time) {
	if len(g.lastFired) >= maxRememberKeys {
		g.prune(now)
	}
	g.lastFired[key] = now
}

//ShouldEmit returns true and records key when it may be delivered at now
func (g *DedupGate) ShouldEmit(key string, now time.Time) bool {
	if !g.Allowed(key, now) {
		return false
	}
	g.Record(key, now)
	return true
}

//prune forgets keys whose cooldown has expired, they would be allowed again anyway
func (g *DedupGate) prune(now time.Time) {
	for key, last := range g.lastFired {
		if now.Sub(last) >= dedupCooldown {
			delete(g.lastFired, key)
		}
	}
}
