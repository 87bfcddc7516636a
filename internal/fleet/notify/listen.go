// Package notify bridges Postgres LISTEN/NOTIFY traffic on the node
// model table into reconciler requests, so a node edited through the
// control plane's own CRUD surface gets verified without waiting for
// the next periodic sweep.
package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/fleetsupervisor/internal/fleet"
)

// payload is the JSON body a NOTIFY fleet_node_changes carries: the
// changed node's id and the kind of change.
type payload struct {
	NodeID string `json:"node_id"`
	Kind   string `json:"kind"` // "upsert" or "delete"
}

// Listener holds a dedicated connection subscribed to a Postgres
// NOTIFY channel and turns each notification into a reconciler
// request.
type Listener struct {
	conn    *pgx.Conn
	channel string
	store   fleet.Store
	recon   *fleet.Reconciler
	logger  zerolog.Logger
}

// New subscribes conn to channel. conn must not be used for any other
// query while the listener is running.
func New(conn *pgx.Conn, channel string, store fleet.Store, recon *fleet.Reconciler, logger zerolog.Logger) *Listener {
	return &Listener{
		conn:    conn,
		channel: channel,
		store:   store,
		recon:   recon,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Run subscribes to the channel and processes notifications until ctx
// is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	if _, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Info().Str("channel", l.channel).Msg("listening for node changes")

	for {
		notification, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		l.handle(ctx, notification.Payload)
	}
}

func (l *Listener) handle(ctx context.Context, raw string) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		l.logger.Error().Err(err).Str("payload", raw).Msg("malformed node change notification")
		return
	}

	if p.Kind == "delete" {
		l.handleDelete(ctx, p)
		return
	}

	nodes, err := l.store.ListNodes(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("list nodes after change notification failed")
		return
	}

	var changed []fleet.Node
	for _, n := range nodes {
		if n.ID == p.NodeID {
			changed = append(changed, n)
			break
		}
	}
	if len(changed) == 0 {
		// The row is already gone even though the notification wasn't
		// tagged "delete"; fall back to the same stop path.
		l.handleDelete(ctx, p)
		return
	}

	completion, err := l.recon.Verify(changed, false)
	if err != nil {
		l.logger.Error().Err(err).Str("node", p.NodeID).Msg("enqueue verify after change notification failed")
		return
	}
	<-completion
}

// handleDelete stops a node that no longer has a live model row. Since
// Shutdown only needs the node's ID to issue a stop, no Store lookup is
// required.
func (l *Listener) handleDelete(ctx context.Context, p payload) {
	node := fleet.Node{ID: p.NodeID}
	completion, err := l.recon.Shutdown([]fleet.Node{node})
	if err != nil {
		l.logger.Error().Err(err).Str("node", p.NodeID).Msg("enqueue stop after delete notification failed")
		return
	}
	<-completion
}
