package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/models"
	"github.com/tagworks/servicedesk/internal/watch"
)

// Watcher opens realtime subscriptions scoped to one organization.
type Watcher interface {
	Tickets(ctx context.Context, orgID string, onChange func(models.ServiceItem), onError func(error)) (*watch.Subscription, error)
	History(ctx context.Context, orgID string, onChange func(models.HistoryEntry), onError func(error)) (*watch.Subscription, error)
}

// EventHandler streams live ticket and history changes as server-sent
// events. Clients resubscribe on disconnect; no replay is offered.
type EventHandler struct {
	watcher Watcher
}

// NewEventHandler creates an event stream handler.
func NewEventHandler(watcher Watcher) *EventHandler {
	return &EventHandler{watcher: watcher}
}

type streamEvent struct {
	name    string
	payload interface{}
}

// Stream handles GET /api/events. Ticket changes require the service-list
// flag; history entries are included only when the history flag is held.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if !user.Can(models.PermViewServiceList) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	// Slow consumers drop events rather than stalling the change stream.
	events := make(chan streamEvent, 64)
	failures := make(chan error, 2)
	push := func(name string, payload interface{}) {
		select {
		case events <- streamEvent{name: name, payload: payload}:
		default:
			log.WithField("event", name).Warn("event stream consumer too slow, dropping")
		}
	}

	ticketSub, err := h.watcher.Tickets(ctx, user.OrganizationID,
		func(item models.ServiceItem) { push("ticket", item) },
		func(err error) { failures <- err })
	if err != nil {
		writeError(w, err)
		return
	}
	defer ticketSub.Cancel()

	if user.Can(models.PermViewHistory) {
		historySub, err := h.watcher.History(ctx, user.OrganizationID,
			func(entry models.HistoryEntry) { push("history", entry) },
			func(err error) { failures <- err })
		if err != nil {
			writeError(w, err)
			return
		}
		defer historySub.Cancel()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-failures:
			log.WithError(err).Error("event stream failed")
			return
		case ev := <-events:
			data, err := json.Marshal(ev.payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
			flusher.Flush()
		}
	}
}
