// Package watch delivers realtime snapshots of tickets, clients and history
// over MongoDB change streams. Each subscription is an explicit handle with
// a required Cancel; callbacks fire on every matching change until then.
package watch

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/models"
)

// Subscription is a cancellable stream handle. Cancel stops delivery and
// releases the underlying change stream; it is safe to call more than once.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription and waits for the delivery loop to exit.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Watcher opens change streams scoped to one organization.
type Watcher struct {
	db *mongo.Database
}

// NewWatcher creates a Watcher.
func NewWatcher(database *mongo.Database) *Watcher {
	return &Watcher{db: database}
}

// Tickets streams every ticket change in the organization. The full
// document accompanies updates so subscribers always see complete state.
func (w *Watcher) Tickets(ctx context.Context, orgID string, onChange func(models.ServiceItem), onError func(error)) (*Subscription, error) {
	return watchCollection(ctx, w.db.Collection(db.TicketsCollection), orgID, onChange, onError)
}

// Clients streams every client change in the organization.
func (w *Watcher) Clients(ctx context.Context, orgID string, onChange func(models.Client), onError func(error)) (*Subscription, error) {
	return watchCollection(ctx, w.db.Collection(db.ClientsCollection), orgID, onChange, onError)
}

// History streams new audit entries for the organization. Within one commit
// the ticket update is applied before its entries are inserted, so a
// subscriber never sees an entry whose ticket state is older than it.
func (w *Watcher) History(ctx context.Context, orgID string, onChange func(models.HistoryEntry), onError func(error)) (*Subscription, error) {
	return watchCollection(ctx, w.db.Collection(db.HistoryCollection), orgID, onChange, onError)
}

func watchCollection[T any](ctx context.Context, coll *mongo.Collection, orgID string, onChange func(T), onError func(error)) (*Subscription, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"fullDocument.organization_id": orgID}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := coll.Watch(streamCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, apperr.Store("open change stream", err)
	}

	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		defer stream.Close(context.Background())

		for stream.Next(streamCtx) {
			var event struct {
				FullDocument T `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				log.WithError(err).Warn("change stream decode failed")
				continue
			}
			onChange(event.FullDocument)
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			onError(apperr.Store("change stream", err))
		}
	}()
	return sub, nil
}
