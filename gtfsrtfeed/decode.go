package gtfsrtfeed

import (
	"encoding/json"
	"strconv"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/fleet-tracking/ingest"
)

// Report is one decoded vehicle position, paired with the timestamp
// the feed attached to it.
type Report struct {
	Raw        ingest.RawPosition
	ObservedAt time.Time
}

// Decode parses a serialized FeedMessage and extracts one Report per
// entity carrying a vehicle position. The vehicle descriptor id names
// the agent (label, then entity id, as fallbacks); entities without a
// position or an id are skipped. Per-entity timestamps win over the
// feed header timestamp.
func Decode(b []byte) ([]Report, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, err
	}

	var headerTS time.Time
	if fm.Header != nil && fm.Header.Timestamp != nil {
		headerTS = time.Unix(int64(*fm.Header.Timestamp), 0)
	}

	out := make([]Report, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		v := e.Vehicle
		if v == nil || v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
			continue
		}
		agentID := ""
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			agentID = *v.Vehicle.Id
		} else if v.Vehicle != nil && v.Vehicle.Label != nil {
			agentID = *v.Vehicle.Label
		} else if e.Id != nil {
			agentID = *e.Id
		}
		if agentID == "" {
			continue
		}
		observedAt := headerTS
		if v.Timestamp != nil {
			observedAt = time.Unix(int64(*v.Timestamp), 0)
		}
		out = append(out, Report{
			Raw: ingest.RawPosition{
				AgentID: agentID,
				Lat:     floatNumber(float64(*v.Position.Latitude)),
				Lng:     floatNumber(float64(*v.Position.Longitude)),
			},
			ObservedAt: observedAt,
		})
	}
	return out, nil
}

func floatNumber(v float64) json.Number {
	return json.Number(strconv.FormatFloat(v, 'f', -1, 64))
}
