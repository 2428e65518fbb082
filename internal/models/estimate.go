package models

import (
	"time"
)

// EstimateSource identifies which side of a claim an estimate came from
type EstimateSource string

const (
	SourceContractor EstimateSource = "contractor"
	SourceCarrier    EstimateSource = "carrier"
)

// LineItem is one row of a construction/repair estimate. Line items are
// immutable inputs to the reconciliation engine; the engine only derives
// new report records from them.
type LineItem struct {
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
	Category    string  `json:"category,omitempty"`
	IsSubtotal  bool    `json:"is_subtotal"`
}

// Estimate represents a stored estimate with its line items
type Estimate struct {
	ID         int            `json:"id"`
	UserID     int            `json:"user_id"`
	Name       string         `json:"name"`
	Source     EstimateSource `json:"source"`
	GrandTotal float64        `json:"grand_total"`
	// Source document (uploaded PDF kept as evidence, never parsed here)
	S3Bucket         *string    `json:"s3_bucket,omitempty"`
	S3Key            *string    `json:"s3_key,omitempty"`
	OriginalFilename *string    `json:"original_filename,omitempty"`
	ContentType      *string    `json:"content_type,omitempty"`
	FileSizeBytes    *int64     `json:"file_size_bytes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Items            []LineItem `json:"items,omitempty"`
}

// CreateEstimateRequest is the request body for creating an estimate
type CreateEstimateRequest struct {
	Name       string         `json:"name"`
	Source     EstimateSource `json:"source"`
	GrandTotal float64        `json:"grand_total"`
	Items      []LineItem     `json:"items"`
}

// EstimateListParams contains parameters for listing estimates
type EstimateListParams struct {
	UserID int
	Source *EstimateSource
	Limit  int
	Offset int
}

// PolicyData carries the policy metadata the depreciation validator
// checks an estimate against
type PolicyData struct {
	SettlementType string `json:"settlement_type,omitempty"` // "RCV" or "ACV"
	ClaimType      string `json:"claim_type,omitempty"`      // "residential" or "commercial"
}
