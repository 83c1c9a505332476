package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/fortuna/footballdb/internal/loader"
	"github.com/fortuna/footballdb/internal/store"
)

// Event types sent on /ws/loads
const (
	EventRunStarted    = "run_started"
	EventStoreReset    = "store_reset"
	EventXGLoaded      = "xg_loaded"
	EventXGUnavailable = "xg_unavailable"
	EventFileStarted   = "file_started"
	EventFileLoaded    = "file_loaded"
	EventFileFailed    = "file_failed"
	EventRunCompleted  = "run_completed"
)

// Event is one message on the load stream.
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

// Reporter broadcasts loader events to every connected client.
type Reporter struct {
	hub *Hub
	now func() time.Time
}

func NewReporter(hub *Hub) *Reporter {
	return &Reporter{hub: hub, now: time.Now}
}

func (r *Reporter) emit(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Time: r.now().UTC(), Data: data})
	if err != nil {
		log.Printf("⚠️  Failed to encode %s event: %v", eventType, err)
		return
	}
	r.hub.Broadcast(payload)
}

func (r *Reporter) OnRunStart(cfg loader.Config) {
	r.emit(EventRunStarted, cfg)
}

func (r *Reporter) OnStoreReset(res store.ResetResult) {
	r.emit(EventStoreReset, map[string]interface{}{"existed": res.Existed, "dropped": res.Dropped})
}

func (r *Reporter) OnXGLoaded(path string, rows int) {
	r.emit(EventXGLoaded, map[string]interface{}{"path": path, "rows": rows})
}

func (r *Reporter) OnXGUnavailable(path string, err error) {
	r.emit(EventXGUnavailable, map[string]interface{}{"path": path, "error": err.Error()})
}

func (r *Reporter) OnFileStart(file, table string, index, total int) {
	r.emit(EventFileStarted, map[string]interface{}{"file": file, "table": table, "index": index + 1, "total": total})
}

func (r *Reporter) OnFileLoaded(result loader.TableResult) {
	r.emit(EventFileLoaded, result)
}

func (r *Reporter) OnFileFailed(failure loader.FileFailure) {
	r.emit(EventFileFailed, failure)
}

func (r *Reporter) OnRunComplete(report *loader.Report) {
	r.emit(EventRunCompleted, report)
}
