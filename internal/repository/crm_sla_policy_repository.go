package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

const crmSlaPolicyColumns = `id, vendor_id, module, target_minutes_low, target_minutes_normal, target_minutes_high,
               target_minutes_critical, escalation_minutes, active, created_at, updated_at`

type crmSlaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewCrmSlaPolicyRepository instantiates the Postgres SLA policy repository.
func NewCrmSlaPolicyRepository(pool *pgxpool.Pool) CrmSlaPolicyRepository {
	return &crmSlaPolicyRepository{pool: pool}
}

func (r *crmSlaPolicyRepository) Upsert(ctx context.Context, policy *domain.CrmSlaPolicy) error {
	const query = `
        INSERT INTO crm_sla_policies (id, vendor_id, module, target_minutes_low, target_minutes_normal,
            target_minutes_high, target_minutes_critical, escalation_minutes, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (vendor_id, module) DO UPDATE SET
            target_minutes_low=EXCLUDED.target_minutes_low,
            target_minutes_normal=EXCLUDED.target_minutes_normal,
            target_minutes_high=EXCLUDED.target_minutes_high,
            target_minutes_critical=EXCLUDED.target_minutes_critical,
            escalation_minutes=EXCLUDED.escalation_minutes,
            active=EXCLUDED.active,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		policy.ID,
		policy.VendorID,
		policy.Module,
		policy.TargetMinutesLow,
		policy.TargetMinutesNormal,
		policy.TargetMinutesHigh,
		policy.TargetMinutesCritical,
		policy.EscalationMinutes,
		policy.Active,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
	return translate(err)
}

func (r *crmSlaPolicyRepository) GetByModule(ctx context.Context, vendorID string, module domain.CrmModule) (*domain.CrmSlaPolicy, error) {
	query := `SELECT ` + crmSlaPolicyColumns + ` FROM crm_sla_policies WHERE vendor_id=$1 AND module=$2`
	policy, err := scanCrmSlaPolicy(r.pool.QueryRow(ctx, query, vendorID, module))
	return policy, translate(err)
}

func (r *crmSlaPolicyRepository) ListByVendor(ctx context.Context, vendorID string) ([]domain.CrmSlaPolicy, error) {
	query := `SELECT ` + crmSlaPolicyColumns + ` FROM crm_sla_policies WHERE vendor_id=$1 ORDER BY module ASC`
	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.CrmSlaPolicy
	for rows.Next() {
		policy, err := scanCrmSlaPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func scanCrmSlaPolicy(row pgx.Row) (*domain.CrmSlaPolicy, error) {
	var policy domain.CrmSlaPolicy
	if err := row.Scan(
		&policy.ID,
		&policy.VendorID,
		&policy.Module,
		&policy.TargetMinutesLow,
		&policy.TargetMinutesNormal,
		&policy.TargetMinutesHigh,
		&policy.TargetMinutesCritical,
		&policy.EscalationMinutes,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}
