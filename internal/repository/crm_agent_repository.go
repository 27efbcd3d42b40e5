package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

type crmAgentRepository struct {
	pool *pgxpool.Pool
}

// NewCrmAgentRepository instantiates the repository.
func NewCrmAgentRepository(pool *pgxpool.Pool) CrmAgentRepository {
	return &crmAgentRepository{pool: pool}
}

func (r *crmAgentRepository) Create(ctx context.Context, agent *domain.CrmAgent) error {
	const query = `
        INSERT INTO crm_agents (id, vendor_id, name, phone, email, skills, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		agent.ID,
		agent.VendorID,
		agent.Name,
		agent.Phone,
		agent.Email,
		skillsOrEmpty(agent.Skills),
		agent.Active,
	).Scan(&agent.CreatedAt, &agent.UpdatedAt)
	return translate(err)
}

func (r *crmAgentRepository) Update(ctx context.Context, agent *domain.CrmAgent) error {
	const query = `
        UPDATE crm_agents
        SET name=$1, phone=$2, email=$3, skills=$4, active=$5, updated_at=NOW()
        WHERE vendor_id=$6 AND id=$7
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		agent.Name,
		agent.Phone,
		agent.Email,
		skillsOrEmpty(agent.Skills),
		agent.Active,
		agent.VendorID,
		agent.ID,
	).Scan(&agent.UpdatedAt)
	return translate(err)
}

func (r *crmAgentRepository) GetByID(ctx context.Context, vendorID, id string) (*domain.CrmAgent, error) {
	const query = `
        SELECT id, vendor_id, name, phone, email, skills, active, created_at, updated_at
        FROM crm_agents WHERE vendor_id=$1 AND id=$2`
	agent, err := scanCrmAgent(r.pool.QueryRow(ctx, query, vendorID, id))
	return agent, translate(err)
}

func (r *crmAgentRepository) ListByVendor(ctx context.Context, vendorID string, limit int) ([]domain.CrmAgent, error) {
	const query = `
        SELECT id, vendor_id, name, phone, email, skills, active, created_at, updated_at
        FROM crm_agents WHERE vendor_id=$1 ORDER BY name ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, vendorID, NormalizeLimit(limit, 200))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.CrmAgent
	for rows.Next() {
		agent, err := scanCrmAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func scanCrmAgent(row pgx.Row) (*domain.CrmAgent, error) {
	var agent domain.CrmAgent
	if err := row.Scan(
		&agent.ID,
		&agent.VendorID,
		&agent.Name,
		&agent.Phone,
		&agent.Email,
		&agent.Skills,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

func skillsOrEmpty(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return skills
}
