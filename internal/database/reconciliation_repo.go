package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhouston2019/claimrecon/internal/models"
)

var ErrReportNotFound = errors.New("reconciliation report not found")

// CreateReport persists a finished reconciliation run. The result,
// summary, and match stats are stored as JSONB.
func (db *DB) CreateReport(ctx context.Context, report *models.ReconciliationReport) error {
	resultJSON, err := json.Marshal(report.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	var matchStatsJSON []byte
	if report.MatchStats != nil {
		matchStatsJSON, err = json.Marshal(report.MatchStats)
		if err != nil {
			return fmt.Errorf("failed to marshal match stats: %w", err)
		}
	}

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO reconciliation_reports (id, user_id, contractor_estimate_id, carrier_estimate_id, result, summary, match_stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, report.ID, report.UserID, report.ContractorEstimateID, report.CarrierEstimateID,
		resultJSON, summaryJSON, matchStatsJSON).Scan(&report.CreatedAt)
	if err != nil {
		return err
	}

	return nil
}

// GetReport retrieves one saved report with its full result
func (db *DB) GetReport(ctx context.Context, id string, userID int) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{}
	var resultJSON, summaryJSON []byte
	var matchStatsJSON []byte

	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, contractor_estimate_id, carrier_estimate_id, result, summary, match_stats, created_at
		FROM reconciliation_reports
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&report.ID,
		&report.UserID,
		&report.ContractorEstimateID,
		&report.CarrierEstimateID,
		&resultJSON,
		&summaryJSON,
		&matchStatsJSON,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(resultJSON, &report.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if len(matchStatsJSON) > 0 {
		report.MatchStats = &models.MatchStats{}
		if err := json.Unmarshal(matchStatsJSON, report.MatchStats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match stats: %w", err)
		}
	}

	return report, nil
}

// ListReports returns a paginated list of a user's saved reports. Only
// the summary is loaded; the full result stays in the database until a
// single report is fetched.
func (db *DB) ListReports(ctx context.Context, params *models.ReportListParams) ([]*models.ReconciliationReport, int, error) {
	var total int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reconciliation_reports WHERE user_id = $1`,
		params.UserID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, contractor_estimate_id, carrier_estimate_id, summary, created_at
		FROM reconciliation_reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, params.UserID, limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []*models.ReconciliationReport
	for rows.Next() {
		report := &models.ReconciliationReport{}
		var summaryJSON []byte
		err := rows.Scan(
			&report.ID,
			&report.UserID,
			&report.ContractorEstimateID,
			&report.CarrierEstimateID,
			&summaryJSON,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, total, nil
}

// DeleteReport deletes a saved report
func (db *DB) DeleteReport(ctx context.Context, id string, userID int) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM reconciliation_reports WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}
