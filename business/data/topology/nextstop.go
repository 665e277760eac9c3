package topology

// StationSet is a set of station ids
type StationSet map[string]bool

// NextStopOnLine scans lineID from the station after from in direction and returns the first station not in pass.
// Returns false at the end of the line, when from is not on the line, or when a through service destination
// would continue past its cutoff station travelling up
func (t *Topology) NextStopOnLine(lineID string, from string, direction Direction, destination string,
	pass StationSet) (string, bool) {

	line, ok := t.lines[lineID]
	if !ok {
		return "", false
	}
	idx, ok := t.index[lineID][from]
	if !ok {
		return "", false
	}

	cutoffIdx := -1
	if ts := t.network.ThroughService; ts != nil && direction == Up &&
		t.DestinationCategory(destination) == ts.Category {
		if i, onLine := t.index[lineID][ts.CutoffStation]; onLine {
			cutoffIdx = i
		}
	}

	step := direction.step()
	for i := idx + step; i >= 0 && i < len(line.Stations); i += step {
		if cutoffIdx >= 0 && i < cutoffIdx {
			return "", false
		}
		candidate := line.Stations[i]
		if !pass[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// BranchLine returns the line a journey starting at from continues on. Branch rules are checked in order,
// otherwise preferLine is used when from is on it, otherwise the first line from belongs to
func (t *Topology) BranchLine(from string, direction Direction, destination string, preferLine string) (string, bool) {
	category := t.DestinationCategory(destination)
	for _, rule := range t.network.Branches {
		if rule.Station != from {
			continue
		}
		if rule.Direction != "" && rule.Direction != direction {
			continue
		}
		if rule.Category != "" && rule.Category != category {
			continue
		}
		return rule.Line, true
	}
	lines := t.linesOf[from]
	if len(lines) == 0 {
		return "", false
	}
	if preferLine != "" && t.OnLine(from, preferLine) {
		return preferLine, true
	}
	return lines[0], true
}

// NextStop returns the next station a train stops at after from, choosing the branch at junction stations
func (t *Topology) NextStop(from string, direction Direction, destination string, pass StationSet,
	preferLine string) (string, bool) {

	lineID, ok := t.BranchLine(from, direction, destination, preferLine)
	if !ok {
		return "", false
	}
	return t.NextStopOnLine(lineID, from, direction, destination, pass)
}

// StationBefore returns the station a train travelling in direction on lineID passes immediately before stationID
func (t *Topology) StationBefore(lineID string, stationID string, direction Direction) (string, bool) {
	line, ok := t.lines[lineID]
	if !ok {
		return "", false
	}
	idx, ok := t.index[lineID][stationID]
	if !ok {
		return "", false
	}
	before := idx - direction.step()
	if before < 0 || before >= len(line.Stations) {
		return "", false
	}
	return line.Stations[before], true
}
