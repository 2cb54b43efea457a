package threat

import (
	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// FixedSensor detects valid hostiles within a fixed radius of its position.
type FixedSensor struct {
	SensorID   model.SensorID
	Position   model.Vec2
	RangeCells float64

	World *kb.World
}

func (s *FixedSensor) ID() model.SensorID { return s.SensorID }

// DetectedThreats returns all valid hostiles within range, in world order.
func (s *FixedSensor) DetectedThreats() []model.TargetID {
	if s == nil || s.World == nil {
		return nil
	}
	var res []model.TargetID
	for _, h := range s.World.ListHostiles() {
		if !h.Valid() {
			continue
		}
		if s.Position.DistanceTo(h.Position) <= s.RangeCells {
			res = append(res, h.ID)
		}
	}
	return res
}

// MobileSensor designates every valid hostile it has been tasked onto,
// regardless of range. It represents roaming or remote detection feeding the
// aggregator through the relay network.
type MobileSensor struct {
	SensorID model.SensorID
	World    *kb.World

	// Designated limits detection to an explicit target set. Empty means
	// every valid hostile in the world.
	Designated []model.TargetID
}

func (s *MobileSensor) ID() model.SensorID { return s.SensorID }

func (s *MobileSensor) DetectedThreats() []model.TargetID {
	if s == nil || s.World == nil {
		return nil
	}
	if len(s.Designated) == 0 {
		var res []model.TargetID
		for _, h := range s.World.ListHostiles() {
			if h.Valid() {
				res = append(res, h.ID)
			}
		}
		return res
	}
	var res []model.TargetID
	for _, id := range s.Designated {
		if s.World.TargetValid(id) {
			res = append(res, id)
		}
	}
	return res
}
