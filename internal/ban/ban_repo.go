package ban

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/RoModerate/romoderate/internal/database"
	"github.com/RoModerate/romoderate/internal/relay"
)

type PostgresRepository struct {
	db database.Database
}

func NewRepository(db database.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Issue deactivates any prior active ban for the (community, player) pair and
// inserts the new ban as active inside one transaction. If a concurrent issue
// wins the insert race the partial unique index raises a duplicate, and one
// retry deactivates the winner before inserting; either interleaving leaves
// exactly one active ban.
func (r *PostgresRepository) Issue(ctx context.Context, ban *Ban) error {
	issue := func() error {
		return r.db.WrapTx(ctx, func(transaction pgx.Tx) error {
			if _, errSupersede := transaction.Exec(ctx, `
				UPDATE ban SET active = false, updated_on = $1, unban_reason = 'superseded'
				WHERE community_id = $2 AND player_id = $3 AND active`,
				ban.UpdatedOn, ban.CommunityID, ban.PlayerID); errSupersede != nil {
				return database.DBErr(errSupersede)
			}

			row := transaction.QueryRow(ctx, `
				INSERT INTO ban (community_id, player_id, player_name, kind, reason, note, unban_reason,
					evidence, issued_by, active, relay_status, valid_until, created_on, updated_on)
				VALUES ($1, $2, $3, $4, $5, $6, '', $7, $8, true, $9, $10, $11, $12)
				RETURNING ban_id`,
				ban.CommunityID, ban.PlayerID, ban.PlayerName, int(ban.Kind), ban.Reason, ban.Note,
				ban.Evidence, ban.IssuedBy, int(ban.RelayStatus), ban.ValidUntil, ban.CreatedOn, ban.UpdatedOn)

			if errScan := row.Scan(&ban.BanID); errScan != nil {
				return database.DBErr(errScan)
			}

			return nil
		})
	}

	if errIssue := issue(); errIssue != nil {
		if errors.Is(errIssue, database.ErrDuplicate) {
			return issue()
		}

		return errIssue
	}

	return nil
}

// Deactivate flips the active flag only when currently set, so racing
// deactivations resolve to exactly one winner.
func (r *PostgresRepository) Deactivate(ctx context.Context, banID int64, unbanReason string) (Ban, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ban SET active = false, unban_reason = $1, updated_on = $2
		WHERE ban_id = $3 AND active
		RETURNING `+banColumns, unbanReason, time.Now(), banID)

	return scanBanRow(row)
}

func (r *PostgresRepository) ByID(ctx context.Context, banID int64) (Ban, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.selectBuilder().Where(sq.Eq{"ban_id": banID}))
	if errRow != nil {
		return Ban{}, database.DBErr(errRow)
	}

	return scanBanRow(row)
}

func (r *PostgresRepository) Query(ctx context.Context, opts QueryOpts) ([]Ban, error) {
	builder := r.selectBuilder().
		Where(sq.Eq{"community_id": opts.Scope}).
		OrderBy("created_on DESC")

	if opts.CommunityID != "" {
		builder = builder.Where(sq.Eq{"community_id": opts.CommunityID})
	}

	if opts.PlayerID > 0 {
		builder = builder.Where(sq.Eq{"player_id": opts.PlayerID})
	}

	if opts.ActiveOnly {
		builder = builder.
			Where(sq.Eq{"active": true}).
			Where(sq.Or{sq.Eq{"valid_until": nil}, sq.Gt{"valid_until": time.Now()}})
	}

	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit).Offset(opts.Offset)
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var bans []Ban

	for rows.Next() {
		ban, errScan := scanBanRow(rows)
		if errScan != nil {
			return nil, errScan
		}

		bans = append(bans, ban)
	}

	return bans, nil
}

func (r *PostgresRepository) AppendEvidence(ctx context.Context, banID int64, uri string) (Ban, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ban SET evidence = array_append(evidence, $1), updated_on = $2
		WHERE ban_id = $3
		RETURNING `+banColumns, uri, time.Now(), banID)

	return scanBanRow(row)
}

func (r *PostgresRepository) SetRelayStatus(ctx context.Context, banID int64, status relay.Status) error {
	return database.DBErr(r.db.ExecUpdateBuilder(ctx, r.db.
		Builder().
		Update("ban").
		Set("relay_status", int(status)).
		Set("updated_on", time.Now()).
		Where(sq.Eq{"ban_id": banID})))
}

// SweepExpired flips the stored active flag on bans whose expiry has passed.
// Read paths already treat them as inactive; this keeps the flag truthful and
// yields the rows so the sweeper can emit change events.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) ([]Ban, error) {
	rows, errRows := r.db.Query(ctx, `
		UPDATE ban SET active = false, unban_reason = 'expired', updated_on = $1
		WHERE active AND valid_until IS NOT NULL AND valid_until <= $1
		RETURNING `+banColumns, now)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var swept []Ban

	for rows.Next() {
		ban, errScan := scanBanRow(rows)
		if errScan != nil {
			return nil, errScan
		}

		swept = append(swept, ban)
	}

	return swept, nil
}

const banColumns = "ban_id, community_id, player_id, player_name, kind, reason, note, unban_reason, " +
	"evidence, issued_by, active, relay_status, valid_until, created_on, updated_on"

func (r *PostgresRepository) selectBuilder() sq.SelectBuilder {
	return r.db.
		Builder().
		Select("ban_id", "community_id", "player_id", "player_name", "kind", "reason", "note",
			"unban_reason", "evidence", "issued_by", "active", "relay_status", "valid_until",
			"created_on", "updated_on").
		From("ban")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBanRow(row rowScanner) (Ban, error) {
	var (
		ban         Ban
		kind        int
		relayStatus int
	)

	if errScan := row.Scan(&ban.BanID, &ban.CommunityID, &ban.PlayerID, &ban.PlayerName, &kind,
		&ban.Reason, &ban.Note, &ban.UnbanReason, &ban.Evidence, &ban.IssuedBy, &ban.Active,
		&relayStatus, &ban.ValidUntil, &ban.CreatedOn, &ban.UpdatedOn); errScan != nil {
		return Ban{}, database.DBErr(errScan)
	}

	ban.Kind = Kind(kind)
	ban.RelayStatus = relay.Status(relayStatus)

	return ban, nil
}
