package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/models"
	"github.com/jmoiron/sqlx"
)

// BaseRepo holds the connection shared by every repository. Queries are
// written with '?' placeholders and rebound for the active driver.
type BaseRepo struct {
	db database.DB
}

func (r *BaseRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

func (r *BaseRepo) Commit(tx database.Transaction) error {
	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("failed to commit transaction", err)
	}
	return nil
}

func (r *BaseRepo) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return errors.NewDatabaseError("failed to ping database", err)
	}
	return nil
}

func (r *BaseRepo) conn() *sqlx.DB {
	return r.db.GetDB()
}

// scopeClause renders a ReadingScope as a WHERE clause with '?' placeholders.
// IN lists are expanded with sqlx.In; callers must Rebind the final query.
func scopeClause(scope models.ReadingScope) (string, []interface{}, error) {
	conds := []string{"1=1"}
	args := []interface{}{}

	if len(scope.SensorIDs) > 0 {
		conds = append(conds, "sensor_id IN (?)")
		args = append(args, scope.SensorIDs)
	}
	if scope.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, scope.Start.UTC())
	}
	if scope.End != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, scope.End.UTC())
	}
	if scope.Before != nil {
		conds = append(conds, "timestamp < ?")
		args = append(args, scope.Before.UTC())
	}

	clause := " WHERE " + strings.Join(conds, " AND ")
	if len(scope.SensorIDs) == 0 {
		return clause, args, nil
	}
	return sqlx.In(clause, args...)
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
