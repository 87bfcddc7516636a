// Package store is the Postgres-backed implementation of fleet.Store,
// reading declared node state from the node model table that the
// control plane's own CRUD surface writes to.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edvin/fleetsupervisor/internal/fleet"
)

// PostgresStore reads and disables nodes against a shared pgxpool.Pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New wraps an already-connected pool.
func New(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListNodes(ctx context.Context) ([]fleet.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, enabled, queues, direct_queue, min_concurrency, max_concurrency, grpc_address
		 FROM fleet_nodes ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []fleet.Node
	for rows.Next() {
		var n fleet.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Enabled, &n.Queues, &n.DirectQueue,
			&n.MinConcurrency, &n.MaxConcurrency, &n.GRPCAddress); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *PostgresStore) DisableNode(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE fleet_nodes SET enabled = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disable node %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disable node %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}
