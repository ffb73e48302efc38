package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/model"
)

// worldKinds are the event kinds served by the public aggregation surface.
// Alerts stay on the member-only community surface.
var worldKinds = []model.EventKind{model.KindFrame, model.KindVision}

// worldEvent is the public projection of a stored event. Node identity and
// raw blob paths are not exposed; media is referenced by URL.
type worldEvent struct {
	ID         string          `json:"id"`
	Kind       model.EventKind `json:"kind"`
	TS         time.Time       `json:"ts"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Cell       string          `json:"cell"`
	EventType  string          `json:"event_type,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	MediaURL   string          `json:"media_url,omitempty"`
}

func redactEvent(ev *model.Event) worldEvent {
	out := worldEvent{
		ID:   ev.ID,
		Kind: ev.Kind,
		TS:   ev.TS,
		Lat:  ev.Lat,
		Lon:  ev.Lon,
		Cell: ev.Cell,
	}
	if ev.Detection != nil {
		out.EventType = ev.Detection.EventType.String()
		out.Confidence = ev.Detection.Confidence
	}
	if ev.MediaPath != "" {
		out.MediaURL = mediaURL(ev.MediaPath)
	}
	return out
}

// handleWorldCells handles GET /v1/world/cells. Events are re-binned from
// their raw coordinates at the requested resolution, so aggregation can run
// coarser than ingestion.
func (s *FieldServer) handleWorldCells(w http.ResponseWriter, r *http.Request) {
	res, err := parseRes(r, s.h3Res)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := parseHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	evs, err := s.store.ListEvents(r.Context(), model.EventFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Kinds: worldKinds,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	cells := make(map[string]int)
	for _, ev := range evs {
		cell, err := hexgrid.CellOf(ev.Lat, ev.Lon, res)
		if err != nil {
			continue
		}
		cells[cell]++
	}

	writeOK(w, http.StatusOK, map[string]any{
		"res":          res,
		"window_hours": hours,
		"cells":        cells,
	})
}

// handleWorldEvents handles GET /v1/world/events.
func (s *FieldServer) handleWorldEvents(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := model.EventFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Kinds: worldKinds,
		Limit: 100,
	}
	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		k := model.EventKind(v)
		if k != model.KindFrame && k != model.KindVision {
			writeError(w, http.StatusBadRequest, "kind must be frame or vision")
			return
		}
		filter.Kinds = []model.EventKind{k}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	evs, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	out := make([]worldEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, redactEvent(ev))
	}

	writeOK(w, http.StatusOK, map[string]any{
		"window_hours": hours,
		"count":        len(out),
		"events":       out,
	})
}

// handleWorldStats handles GET /v1/world/stats.
func (s *FieldServer) handleWorldStats(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	evs, err := s.store.ListEvents(r.Context(), model.EventFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Kinds: worldKinds,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	byKind := make(map[string]int)
	byType := make(map[string]int)
	nodes := make(map[string]struct{})
	cells := make(map[string]struct{})
	for _, ev := range evs {
		byKind[ev.Kind.String()]++
		if ev.Detection != nil {
			byType[ev.Detection.EventType.String()]++
		}
		if ev.NodeID != "" {
			nodes[ev.NodeID] = struct{}{}
		}
		cells[ev.Cell] = struct{}{}
	}

	writeOK(w, http.StatusOK, map[string]any{
		"window_hours":  hours,
		"events_total":  len(evs),
		"by_kind":       byKind,
		"by_event_type": byType,
		"nodes_seen":    len(nodes),
		"cells_covered": len(cells),
	})
}

// handleVisionCoverage handles GET /v1/vision/coverage.
func (s *FieldServer) handleVisionCoverage(w http.ResponseWriter, r *http.Request) {
	res, err := parseRes(r, s.h3Res)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := parseHours(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	evs, err := s.store.ListEvents(r.Context(), model.EventFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Kinds: worldKinds,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	cells := make(map[string]int)
	total := 0
	for _, ev := range evs {
		cell, err := hexgrid.CellOf(ev.Lat, ev.Lon, res)
		if err != nil {
			continue
		}
		cells[cell]++
		total++
	}

	writeOK(w, http.StatusOK, map[string]any{
		"res":           res,
		"window_hours":  hours,
		"cells_covered": len(cells),
		"events_total":  total,
		"cells":         cells,
	})
}
