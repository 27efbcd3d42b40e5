package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

const crmTicketColumns = `id, vendor_id, module, source_ref_id, title, customer_name, customer_phone, priority, status,
               assigned_agent_id, sla_due_at, escalation_due_at, escalation_minutes, escalated, escalation_level,
               notes, version, created_at, updated_at`

type crmTicketRepository struct {
	pool *pgxpool.Pool
}

// NewCrmTicketRepository instantiates the Postgres ticket repository.
func NewCrmTicketRepository(pool *pgxpool.Pool) CrmTicketRepository {
	return &crmTicketRepository{pool: pool}
}

func (r *crmTicketRepository) Create(ctx context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            INSERT INTO crm_tickets (id, vendor_id, module, source_ref_id, title, customer_name, customer_phone, priority,
                status, assigned_agent_id, sla_due_at, escalation_due_at, escalation_minutes, escalated, escalation_level,
                notes, version, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, query,
			ticket.ID,
			ticket.VendorID,
			ticket.Module,
			ticket.SourceRefID,
			ticket.Title,
			ticket.CustomerName,
			ticket.CustomerPhone,
			ticket.Priority,
			ticket.Status,
			ticket.AssignedAgentID,
			ticket.SlaDueAt,
			ticket.EscalationDueAt,
			ticket.EscalationMinutes,
			ticket.Escalated,
			ticket.EscalationLevel,
			ticket.Notes,
			ticket.Version,
			ticket.CreatedAt,
		).Scan(&ticket.UpdatedAt); err != nil {
			return err
		}
		return insertHistory(ctx, tx, entry)
	})
	return translate(err)
}

func (r *crmTicketRepository) GetByID(ctx context.Context, vendorID, id string) (*domain.CrmTicket, error) {
	query := `SELECT ` + crmTicketColumns + ` FROM crm_tickets WHERE vendor_id=$1 AND id=$2`
	ticket, err := scanCrmTicket(r.pool.QueryRow(ctx, query, vendorID, id))
	return ticket, translate(err)
}

func (r *crmTicketRepository) GetBySource(ctx context.Context, vendorID string, module domain.CrmModule, sourceRefID string) (*domain.CrmTicket, error) {
	query := `SELECT ` + crmTicketColumns + ` FROM crm_tickets WHERE vendor_id=$1 AND module=$2 AND source_ref_id=$3`
	ticket, err := scanCrmTicket(r.pool.QueryRow(ctx, query, vendorID, module, sourceRefID))
	return ticket, translate(err)
}

func (r *crmTicketRepository) List(ctx context.Context, filter CrmTicketFilter) ([]domain.CrmTicket, error) {
	clauses := []string{"vendor_id=$1"}
	args := []any{filter.VendorID}
	if filter.Module != nil {
		args = append(args, *filter.Module)
		clauses = append(clauses, fmt.Sprintf("module=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if filter.EscalatedOnly {
		clauses = append(clauses, "escalated")
	}

	query := fmt.Sprintf(`SELECT %s FROM crm_tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		crmTicketColumns, strings.Join(clauses, " AND "), NormalizeLimit(filter.Limit, 20), max(filter.Offset, 0))
	return r.query(ctx, query, args...)
}

func (r *crmTicketRepository) Apply(ctx context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            UPDATE crm_tickets SET status=$1, assigned_agent_id=$2, escalation_due_at=$3, escalated=$4,
                escalation_level=$5, notes=$6, version=version+1, updated_at=NOW()
            WHERE vendor_id=$7 AND id=$8 AND version=$9
            RETURNING version, updated_at`
		err := tx.QueryRow(ctx, query,
			ticket.Status,
			ticket.AssignedAgentID,
			ticket.EscalationDueAt,
			ticket.Escalated,
			ticket.EscalationLevel,
			ticket.Notes,
			ticket.VendorID,
			ticket.ID,
			ticket.Version,
		).Scan(&ticket.Version, &ticket.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		applied = true
		return insertHistory(ctx, tx, entry)
	})
	if err != nil {
		return false, translate(err)
	}
	return applied, nil
}

func (r *crmTicketRepository) ListEscalationDue(ctx context.Context, vendorID string, now time.Time, limit int) ([]domain.CrmTicket, error) {
	query := `SELECT ` + crmTicketColumns + ` FROM crm_tickets
        WHERE vendor_id=$1 AND status IN ($2,$3,$4) AND escalation_due_at IS NOT NULL AND escalation_due_at < $5
        ORDER BY escalation_due_at ASC LIMIT $6`
	statuses := domain.EscalatableStatuses()
	return r.query(ctx, query, vendorID, statuses[0], statuses[1], statuses[2], now, NormalizeLimit(limit, 500))
}

func (r *crmTicketRepository) ListVendorsWithEscalationDue(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
        SELECT DISTINCT vendor_id FROM crm_tickets
        WHERE status IN ($1,$2,$3) AND escalation_due_at IS NOT NULL AND escalation_due_at < $4
        ORDER BY vendor_id`
	statuses := domain.EscalatableStatuses()
	rows, err := r.pool.Query(ctx, query, statuses[0], statuses[1], statuses[2], now)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var vendors []string
	for rows.Next() {
		var vendorID string
		if err := rows.Scan(&vendorID); err != nil {
			return nil, err
		}
		vendors = append(vendors, vendorID)
	}
	return vendors, rows.Err()
}

func (r *crmTicketRepository) query(ctx context.Context, query string, args ...any) ([]domain.CrmTicket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.CrmTicket
	for rows.Next() {
		ticket, err := scanCrmTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.CrmTicketHistory) error {
	if entry == nil {
		return nil
	}
	const query = `
        INSERT INTO crm_ticket_history (id, vendor_id, ticket_id, action, actor, from_status, to_status, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return tx.QueryRow(ctx, query,
		entry.ID,
		entry.VendorID,
		entry.TicketID,
		entry.Action,
		entry.Actor,
		entry.FromStatus,
		entry.ToStatus,
		entry.Comment,
	).Scan(&entry.CreatedAt)
}

func scanCrmTicket(row pgx.Row) (*domain.CrmTicket, error) {
	var ticket domain.CrmTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.VendorID,
		&ticket.Module,
		&ticket.SourceRefID,
		&ticket.Title,
		&ticket.CustomerName,
		&ticket.CustomerPhone,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedAgentID,
		&ticket.SlaDueAt,
		&ticket.EscalationDueAt,
		&ticket.EscalationMinutes,
		&ticket.Escalated,
		&ticket.EscalationLevel,
		&ticket.Notes,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

type crmTicketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewCrmTicketHistoryRepository builds the history reader.
func NewCrmTicketHistoryRepository(pool *pgxpool.Pool) CrmTicketHistoryRepository {
	return &crmTicketHistoryRepository{pool: pool}
}

func (r *crmTicketHistoryRepository) ListByTicket(ctx context.Context, vendorID, ticketID string, limit, offset int) ([]domain.CrmTicketHistory, error) {
	const query = `
        SELECT id, vendor_id, ticket_id, action, actor, from_status, to_status, comment, created_at
        FROM crm_ticket_history WHERE vendor_id=$1 AND ticket_id=$2
        ORDER BY created_at ASC LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, vendorID, ticketID, NormalizeLimit(limit, 100), max(offset, 0))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.CrmTicketHistory
	for rows.Next() {
		var entry domain.CrmTicketHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.VendorID,
			&entry.TicketID,
			&entry.Action,
			&entry.Actor,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
