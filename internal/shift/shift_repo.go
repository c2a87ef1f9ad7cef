package shift

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/RoModerate/romoderate/internal/database"
)

const shiftColumns = "shift_id, community_id, moderator_id, status, started_on, ended_on, " +
	"actions_count, bans_issued, appeals_reviewed, tickets_handled, reports_processed"

type PostgresRepository struct {
	db database.Database
}

func NewRepository(db database.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Start(ctx context.Context, shift *Shift) error {
	// The partial unique index on (community_id, moderator_id) WHERE status=0
	// rejects a second concurrent start.
	return database.DBErr(r.db.ExecInsertBuilderWithReturnValue(ctx, r.db.
		Builder().
		Insert("shift").
		Columns("community_id", "moderator_id", "status", "started_on").
		Values(shift.CommunityID, shift.ModeratorID, int(shift.Status), shift.StartedOn).
		Suffix("RETURNING shift_id"), &shift.ShiftID))
}

func (r *PostgresRepository) End(ctx context.Context, communityID string, moderatorID string, endedOn time.Time) (Shift, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE shift SET status = $1, ended_on = $2
		WHERE community_id = $3 AND moderator_id = $4 AND status = $5
		RETURNING `+shiftColumns,
		int(StatusCompleted), endedOn, communityID, moderatorID, int(StatusActive))

	return scanShiftRow(row)
}

func (r *PostgresRepository) RecordAction(ctx context.Context, communityID string, moderatorID string, kind ActionKind) error {
	set := "actions_count = actions_count + 1"
	if column := kind.Column(); column != "" {
		set += fmt.Sprintf(", %s = %s + 1", column, column)
	}

	result, errExec := r.db.Pool().Exec(ctx, fmt.Sprintf(`
		UPDATE shift SET %s
		WHERE community_id = $1 AND moderator_id = $2 AND status = $3`, set),
		communityID, moderatorID, int(StatusActive))
	if errExec != nil {
		return database.DBErr(errExec)
	}

	if result.RowsAffected() == 0 {
		return database.ErrNoResult
	}

	return nil
}

func (r *PostgresRepository) ByID(ctx context.Context, shiftID int64) (Shift, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.selectBuilder().Where(sq.Eq{"shift_id": shiftID}))
	if errRow != nil {
		return Shift{}, database.DBErr(errRow)
	}

	return scanShiftRow(row)
}

func (r *PostgresRepository) Query(ctx context.Context, opts QueryOpts) ([]Shift, error) {
	builder := r.selectBuilder().
		Where(sq.Eq{"community_id": opts.Scope}).
		OrderBy("started_on DESC")

	if opts.CommunityID != "" {
		builder = builder.Where(sq.Eq{"community_id": opts.CommunityID})
	}

	if opts.ModeratorID != "" {
		builder = builder.Where(sq.Eq{"moderator_id": opts.ModeratorID})
	}

	if opts.ActiveOnly {
		builder = builder.Where(sq.Eq{"status": int(StatusActive)})
	}

	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit).Offset(opts.Offset)
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var shifts []Shift

	for rows.Next() {
		shift, errScan := scanShiftRow(rows)
		if errScan != nil {
			return nil, errScan
		}

		shifts = append(shifts, shift)
	}

	return shifts, nil
}

func (r *PostgresRepository) selectBuilder() sq.SelectBuilder {
	return r.db.
		Builder().
		Select("shift_id", "community_id", "moderator_id", "status", "started_on", "ended_on",
			"actions_count", "bans_issued", "appeals_reviewed", "tickets_handled", "reports_processed").
		From("shift")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShiftRow(row rowScanner) (Shift, error) {
	var (
		shift  Shift
		status int
	)

	if errScan := row.Scan(&shift.ShiftID, &shift.CommunityID, &shift.ModeratorID, &status,
		&shift.StartedOn, &shift.EndedOn, &shift.Metrics.ActionsCount, &shift.Metrics.BansIssued,
		&shift.Metrics.AppealsReviewed, &shift.Metrics.TicketsHandled,
		&shift.Metrics.ReportsProcessed); errScan != nil {
		return Shift{}, database.DBErr(errScan)
	}

	shift.Status = Status(status)

	return shift, nil
}
