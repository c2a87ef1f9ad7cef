package ticket

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/RoModerate/romoderate/internal/database"
)

const ticketColumns = "ticket_id, community_id, submitter_id, title, description, category, " +
	"priority, status, assigned_to, created_on, updated_on, closed_on"

type PostgresRepository struct {
	db database.Database
}

func NewRepository(db database.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, ticket *Ticket) error {
	return database.DBErr(r.db.ExecInsertBuilderWithReturnValue(ctx, r.db.
		Builder().
		Insert("ticket").
		Columns("community_id", "submitter_id", "title", "description", "category",
			"priority", "status", "created_on", "updated_on").
		Values(ticket.CommunityID, ticket.SubmitterID, ticket.Title, ticket.Description,
			ticket.Category, int(ticket.Priority), int(ticket.Status), ticket.CreatedOn, ticket.UpdatedOn).
		Suffix("RETURNING ticket_id"), &ticket.TicketID))
}

// Claim only matches unassigned rows; losing a race surfaces as ErrNoResult.
func (r *PostgresRepository) Claim(ctx context.Context, ticketID int64, moderatorID string) (Ticket, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ticket SET assigned_to = $1, updated_on = $2
		WHERE ticket_id = $3 AND assigned_to IS NULL
		RETURNING `+ticketColumns,
		moderatorID, time.Now(), ticketID)

	return scanTicketRow(row)
}

func (r *PostgresRepository) SetPriority(ctx context.Context, ticketID int64, priority Priority) (Ticket, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ticket SET priority = $1, updated_on = $2
		WHERE ticket_id = $3
		RETURNING `+ticketColumns,
		int(priority), time.Now(), ticketID)

	return scanTicketRow(row)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, ticketID int64, status Status, closedOn *time.Time) (Ticket, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ticket SET status = $1, closed_on = $2, updated_on = $3
		WHERE ticket_id = $4
		RETURNING `+ticketColumns,
		int(status), closedOn, time.Now(), ticketID)

	return scanTicketRow(row)
}

func (r *PostgresRepository) ByID(ctx context.Context, ticketID int64) (Ticket, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.selectBuilder().Where(sq.Eq{"ticket_id": ticketID}))
	if errRow != nil {
		return Ticket{}, database.DBErr(errRow)
	}

	return scanTicketRow(row)
}

func (r *PostgresRepository) Query(ctx context.Context, opts QueryOpts) ([]Ticket, error) {
	builder := r.selectBuilder().
		Where(sq.Eq{"community_id": opts.Scope}).
		OrderBy("priority DESC", "created_on DESC")

	if opts.CommunityID != "" {
		builder = builder.Where(sq.Eq{"community_id": opts.CommunityID})
	}

	if opts.SubmitterID != "" {
		builder = builder.Where(sq.Eq{"submitter_id": opts.SubmitterID})
	}

	if opts.AssignedTo != "" {
		builder = builder.Where(sq.Eq{"assigned_to": opts.AssignedTo})
	}

	if opts.OpenOnly {
		builder = builder.Where(sq.Eq{"status": int(StatusOpen)})
	}

	if opts.Limit > 0 {
		builder = builder.Limit(opts.Limit).Offset(opts.Offset)
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var tickets []Ticket

	for rows.Next() {
		ticket, errScan := scanTicketRow(rows)
		if errScan != nil {
			return nil, errScan
		}

		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

func (r *PostgresRepository) selectBuilder() sq.SelectBuilder {
	return r.db.
		Builder().
		Select("ticket_id", "community_id", "submitter_id", "title", "description", "category",
			"priority", "status", "assigned_to", "created_on", "updated_on", "closed_on").
		From("ticket")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (Ticket, error) {
	var (
		ticket     Ticket
		priority   int
		status     int
		assignedTo *string
	)

	if errScan := row.Scan(&ticket.TicketID, &ticket.CommunityID, &ticket.SubmitterID,
		&ticket.Title, &ticket.Description, &ticket.Category, &priority, &status,
		&assignedTo, &ticket.CreatedOn, &ticket.UpdatedOn, &ticket.ClosedOn); errScan != nil {
		return Ticket{}, database.DBErr(errScan)
	}

	ticket.Priority = Priority(priority)
	ticket.Status = Status(status)

	if assignedTo != nil {
		ticket.AssignedTo = *assignedTo
	}

	return ticket, nil
}
