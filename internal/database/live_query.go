package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// liveFeed implements domain.Feed on top of a SurrealDB live query.
// Notifications from the driver are translated into domain.ChangeEvent values
// and delivered on the Events channel until the feed is closed.
type liveFeed struct {
	id          string
	table       string
	liveQueryID string

	db     *surrealdb.DB
	events chan domain.ChangeEvent
	cancel context.CancelFunc

	closeOnce sync.Once
}

// openFeed starts a LIVE SELECT on the given table and returns a running feed.
// The filter, when present, is appended as a WHERE clause with bound params.
func openFeed(ctx context.Context, db *surrealdb.DB, table string, filter *domain.ChangeFilter) (*liveFeed, error) {
	query := fmt.Sprintf("LIVE SELECT * FROM %s", table)
	params := map[string]any{}
	if filter != nil && filter.Where != "" {
		query = fmt.Sprintf("%s WHERE %s", query, filter.Where)
		for k, v := range filter.Params {
			params[k] = v
		}
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	feed := &liveFeed{
		id:     uuid.New().String(),
		table:  table,
		db:     db,
		events: make(chan domain.ChangeEvent, 16),
		cancel: cancel,
	}

	slog.Info("Creating live query subscription", "feedID", feed.id, "table", table)

	// Execute the LIVE SELECT query to get the live query UUID.
	results, err := surrealdb.Query[any](ctx, db, query, params)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to execute live query: %w", err)
	}
	if results == nil || len(*results) == 0 {
		cancel()
		return nil, fmt.Errorf("live query returned no results")
	}

	result := (*results)[0]
	if result.Status != "OK" {
		cancel()
		return nil, fmt.Errorf("live query failed with status: %s", result.Status)
	}

	liveQueryID, err := extractLiveQueryID(result.Result)
	if err != nil {
		cancel()
		return nil, err
	}
	feed.liveQueryID = liveQueryID

	slog.Info("Live query established", "feedID", feed.id, "liveQueryID", feed.liveQueryID)

	notificationChan, err := db.LiveNotifications(feed.liveQueryID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get notification channel: %w", err)
	}

	go feed.pump(feedCtx, notificationChan)
	go feed.killOnCancel(feedCtx)

	return feed, nil
}

// extractLiveQueryID pulls the live query UUID out of the driver's result,
// which may arrive as a string, a models.UUID, or wrapped in a map.
func extractLiveQueryID(result any) (string, error) {
	if result == nil {
		return "", fmt.Errorf("live query returned nil result")
	}

	switch v := result.(type) {
	case string:
		return v, nil
	case models.UUID:
		return v.String(), nil
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id, nil
		}
		if id, ok := v["id"].(models.UUID); ok {
			return id.String(), nil
		}
		return "", fmt.Errorf("live query result map does not contain 'id' field: %+v", v)
	default:
		return "", fmt.Errorf("unexpected live query result type: %T, value: %+v", result, result)
	}
}

// pump forwards driver notifications to the feed's event channel.
func (f *liveFeed) pump(ctx context.Context, notificationChan <-chan connection.Notification) {
	defer close(f.events)

	slog.Debug("Live feed listener started", "feedID", f.id, "liveQueryID", f.liveQueryID)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Live feed listener context cancelled", "feedID", f.id)
			return

		case notification, ok := <-notificationChan:
			if !ok {
				slog.Debug("Live feed notification channel closed", "feedID", f.id)
				return
			}

			var action domain.ChangeAction
			switch notification.Action {
			case connection.CreateAction:
				action = domain.ActionCreate
			case connection.UpdateAction:
				action = domain.ActionUpdate
			case connection.DeleteAction:
				action = domain.ActionDelete
			default:
				slog.Warn("Unknown notification action", "feedID", f.id, "action", notification.Action)
				continue
			}

			event := domain.ChangeEvent{Action: action, Record: notification.Result}
			select {
			case f.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// killOnCancel tears the live query down on the database side once the feed's
// context is cancelled.
func (f *liveFeed) killOnCancel(ctx context.Context) {
	<-ctx.Done()

	// Use a separate context for cleanup to avoid cancellation issues.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cleanupCancel()

	if err := f.db.CloseLiveNotifications(f.liveQueryID); err != nil {
		slog.Warn("Failed to close live notifications", "error", err, "liveQueryID", f.liveQueryID)
	}

	killParams := map[string]any{"liveQueryID": f.liveQueryID}
	if _, err := surrealdb.Query[any](cleanupCtx, f.db, "KILL $liveQueryID", killParams); err != nil {
		slog.Warn("Failed to kill live query", "error", err, "liveQueryID", f.liveQueryID)
	} else {
		slog.Debug("Killed live query", "liveQueryID", f.liveQueryID)
	}
}

// Events implements domain.Feed.
func (f *liveFeed) Events() <-chan domain.ChangeEvent {
	return f.events
}

// Close implements domain.Feed.
func (f *liveFeed) Close() error {
	f.closeOnce.Do(func() {
		f.cancel()
		slog.Info("Live feed closed", "feedID", f.id, "table", f.table)
	})
	return nil
}
