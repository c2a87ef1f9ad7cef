package ban

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/RoModerate/romoderate/internal/database"
)

type PostgresAppealRepository struct {
	db database.Database
}

func NewAppealRepository(db database.Database) *PostgresAppealRepository {
	return &PostgresAppealRepository{db: db}
}

// Submit inserts the appeal. The partial unique index on (ban_id) WHERE
// status=pending rejects a second open appeal for the same ban.
func (r *PostgresAppealRepository) Submit(ctx context.Context, appeal *Appeal) error {
	return database.DBErr(r.db.ExecInsertBuilderWithReturnValue(ctx, r.db.
		Builder().
		Insert("appeal").
		Columns("ban_id", "community_id", "submitter_id", "body", "status", "created_on").
		Values(appeal.BanID, appeal.CommunityID, appeal.SubmitterID, appeal.Body,
			int(appeal.Status), appeal.CreatedOn).
		Suffix("RETURNING appeal_id"), &appeal.AppealID))
}

func (r *PostgresAppealRepository) ByID(ctx context.Context, appealID int64) (Appeal, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.selectBuilder().Where(sq.Eq{"appeal_id": appealID}))
	if errRow != nil {
		return Appeal{}, database.DBErr(errRow)
	}

	return scanAppealRow(row)
}

// Review transitions the appeal out of pending and, on approval, deactivates
// the owning ban inside the same transaction. Matching on status=pending makes
// the decision apply exactly once under concurrent reviewers.
func (r *PostgresAppealRepository) Review(ctx context.Context, appealID int64, decision AppealStatus,
	reviewer string, note string, reviewedOn time.Time,
) (Appeal, error) {
	var reviewed Appeal

	errTx := r.db.WrapTx(ctx, func(transaction pgx.Tx) error {
		row := transaction.QueryRow(ctx, `
			UPDATE appeal SET status = $1, reviewed_by = $2, review_note = $3, reviewed_on = $4
			WHERE appeal_id = $5 AND status = $6
			RETURNING `+appealColumns,
			int(decision), reviewer, note, reviewedOn, appealID, int(AppealPending))

		scanned, errScan := scanAppealRow(row)
		if errScan != nil {
			return errScan
		}

		reviewed = scanned

		if decision == AppealApproved {
			if _, errBan := transaction.Exec(ctx, `
				UPDATE ban SET active = false, unban_reason = $1, updated_on = $2
				WHERE ban_id = $3 AND active`,
				"appeal approved", reviewedOn, reviewed.BanID); errBan != nil {
				return database.DBErr(errBan)
			}
		}

		return nil
	})
	if errTx != nil {
		return Appeal{}, errTx
	}

	return reviewed, nil
}

func (r *PostgresAppealRepository) Query(ctx context.Context, opts AppealQueryOpts) ([]Appeal, error) {
	builder := r.selectBuilder().
		Where(sq.Eq{"community_id": opts.Scope}).
		OrderBy("created_on DESC")

	if opts.CommunityID != "" {
		builder = builder.Where(sq.Eq{"community_id": opts.CommunityID})
	}

	if opts.BanID > 0 {
		builder = builder.Where(sq.Eq{"ban_id": opts.BanID})
	}

	if opts.PendingOnly {
		builder = builder.Where(sq.Eq{"status": int(AppealPending)})
	}

	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit).Offset(opts.Offset)
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var appeals []Appeal

	for rows.Next() {
		appeal, errScan := scanAppealRow(rows)
		if errScan != nil {
			return nil, errScan
		}

		appeals = append(appeals, appeal)
	}

	return appeals, nil
}

const appealColumns = "appeal_id, ban_id, community_id, submitter_id, body, status, " +
	"reviewed_by, review_note, created_on, reviewed_on"

func (r *PostgresAppealRepository) selectBuilder() sq.SelectBuilder {
	return r.db.
		Builder().
		Select("appeal_id", "ban_id", "community_id", "submitter_id", "body", "status",
			"reviewed_by", "review_note", "created_on", "reviewed_on").
		From("appeal")
}

func scanAppealRow(row rowScanner) (Appeal, error) {
	var (
		appeal Appeal
		status int
	)

	if errScan := row.Scan(&appeal.AppealID, &appeal.BanID, &appeal.CommunityID, &appeal.SubmitterID,
		&appeal.Body, &status, &appeal.ReviewedBy, &appeal.ReviewNote, &appeal.CreatedOn,
		&appeal.ReviewedOn); errScan != nil {
		return Appeal{}, database.DBErr(errScan)
	}

	appeal.Status = AppealStatus(status)

	return appeal, nil
}
