package httpapi

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ── Status ───────────────────────────────────────────────────────────────────

func statusToProto(s StatusResponse) (*structpb.Struct, error) {
	doors := make([]any, 0, len(s.Doors))
	for _, d := range s.Doors {
		doors = append(doors, doorFields(d))
	}
	return structpb.NewStruct(map[string]any{
		"unit_id":      s.UnitID,
		"version":      s.Version,
		"mode":         s.Mode,
		"online_ready": s.OnlineReady,
		"mode_since":   s.ModeSince.Format(time.RFC3339),
		"protocol":     s.Protocol,
		"doors":        doors,
	})
}

// ── Doors ────────────────────────────────────────────────────────────────────

func doorToProto(d DoorResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(doorFields(d))
}

func doorFields(d DoorResponse) map[string]any {
	m := map[string]any{
		"id":               d.ID,
		"opening":          d.Opening,
		"permanent_open":   d.PermanentOpen,
		"door_open":        d.DoorOpen,
		"extra_time_count": d.ExtraTimeCount,
	}
	if !d.OpeningStartedAt.IsZero() {
		m["opening_started_at"] = d.OpeningStartedAt.Format(time.RFC3339Nano)
	}
	return m
}
