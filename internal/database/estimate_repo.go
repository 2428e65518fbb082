package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhouston2019/claimrecon/internal/models"
)

var ErrEstimateNotFound = errors.New("estimate not found")

// CreateEstimate stores an estimate and its line items in one
// transaction
func (db *DB) CreateEstimate(ctx context.Context, userID int, req *models.CreateEstimateRequest) (*models.Estimate, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	estimate := &models.Estimate{}
	err = tx.QueryRow(ctx, `
		INSERT INTO estimates (user_id, name, source, grand_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, user_id, name, source, grand_total, created_at, updated_at
	`, userID, req.Name, req.Source, req.GrandTotal).Scan(
		&estimate.ID,
		&estimate.UserID,
		&estimate.Name,
		&estimate.Source,
		&estimate.GrandTotal,
		&estimate.CreatedAt,
		&estimate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, item := range req.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO estimate_line_items (estimate_id, line_number, description, quantity, unit, unit_price, total, category, is_subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, estimate.ID, item.LineNumber, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.Total, item.Category, item.IsSubtotal)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	estimate.Items = req.Items
	return estimate, nil
}

// GetEstimate retrieves an estimate with its line items. Returns
// ErrEstimateNotFound when the estimate doesn't exist or belongs to
// another user.
func (db *DB) GetEstimate(ctx context.Context, id, userID int) (*models.Estimate, error) {
	estimate := &models.Estimate{}

	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, name, source, grand_total,
			s3_bucket, s3_key, original_filename, content_type, file_size_bytes,
			created_at, updated_at
		FROM estimates
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&estimate.ID,
		&estimate.UserID,
		&estimate.Name,
		&estimate.Source,
		&estimate.GrandTotal,
		&estimate.S3Bucket,
		&estimate.S3Key,
		&estimate.OriginalFilename,
		&estimate.ContentType,
		&estimate.FileSizeBytes,
		&estimate.CreatedAt,
		&estimate.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEstimateNotFound
		}
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT line_number, description, quantity, unit, unit_price, total, category, is_subtotal
		FROM estimate_line_items
		WHERE estimate_id = $1
		ORDER BY line_number
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		err := rows.Scan(
			&item.LineNumber,
			&item.Description,
			&item.Quantity,
			&item.Unit,
			&item.UnitPrice,
			&item.Total,
			&item.Category,
			&item.IsSubtotal,
		)
		if err != nil {
			return nil, err
		}
		estimate.Items = append(estimate.Items, item)
	}

	return estimate, nil
}

// ListEstimates returns a paginated list of a user's estimates without
// their line items
func (db *DB) ListEstimates(ctx context.Context, params *models.EstimateListParams) ([]*models.Estimate, int, error) {
	query := `
		SELECT id, user_id, name, source, grand_total,
			s3_bucket, s3_key, original_filename, content_type, file_size_bytes,
			created_at, updated_at
		FROM estimates
		WHERE user_id = $1
	`
	countQuery := `SELECT COUNT(*) FROM estimates WHERE user_id = $1`
	args := []interface{}{params.UserID}

	if params.Source != nil {
		query += ` AND source = $2`
		countQuery += ` AND source = $2`
		args = append(args, *params.Source)
	}

	var total int
	if err := db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += ` ORDER BY created_at DESC`
	if params.Source != nil {
		query += ` LIMIT $3 OFFSET $4`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var estimates []*models.Estimate
	for rows.Next() {
		estimate := &models.Estimate{}
		err := rows.Scan(
			&estimate.ID,
			&estimate.UserID,
			&estimate.Name,
			&estimate.Source,
			&estimate.GrandTotal,
			&estimate.S3Bucket,
			&estimate.S3Key,
			&estimate.OriginalFilename,
			&estimate.ContentType,
			&estimate.FileSizeBytes,
			&estimate.CreatedAt,
			&estimate.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		estimates = append(estimates, estimate)
	}

	return estimates, total, nil
}

// DeleteEstimate deletes an estimate and its line items. Returns the
// document key (if any) so the caller can remove the stored document.
func (db *DB) DeleteEstimate(ctx context.Context, id, userID int) (*string, error) {
	var documentKey *string
	err := db.Pool.QueryRow(ctx, `
		DELETE FROM estimates
		WHERE id = $1 AND user_id = $2
		RETURNING s3_key
	`, id, userID).Scan(&documentKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEstimateNotFound
		}
		return nil, err
	}
	return documentKey, nil
}

// SetEstimateDocument records the stored source document for an
// estimate
func (db *DB) SetEstimateDocument(ctx context.Context, id, userID int, bucket, key, filename, contentType string, sizeBytes int64) error {
	result, err := db.Pool.Exec(ctx, `
		UPDATE estimates
		SET s3_bucket = $3, s3_key = $4, original_filename = $5, content_type = $6, file_size_bytes = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, bucket, key, filename, contentType, sizeBytes)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrEstimateNotFound
	}
	return nil
}
