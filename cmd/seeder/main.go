package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jhouston2019/claimrecon/internal/config"
	"github.com/jhouston2019/claimrecon/internal/database"
	"github.com/jhouston2019/claimrecon/internal/models"
)

// Loads a line-item CSV into the estimates table. Expected columns:
// line_number,description,quantity,unit,unit_price,total,category,is_subtotal
// Column order is free; extra columns are ignored.
func main() {
	filePath := flag.String("file", "", "CSV file of line items to import (required)")
	name := flag.String("name", "", "Estimate name (defaults to the file name)")
	source := flag.String("source", "contractor", "Estimate source: contractor or carrier")
	userEmail := flag.String("user", "", "Owner email (defaults to the admin account)")
	dryRun := flag.Bool("dry-run", false, "Preview parsed line items without writing to database")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("-file is required")
	}
	if *source != string(models.SourceContractor) && *source != string(models.SourceCarrier) {
		log.Fatalf("invalid source %q: must be contractor or carrier", *source)
	}

	godotenv.Load()
	cfg := config.Load()

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}
	defer file.Close()

	items, err := parseLineItems(file)
	if err != nil {
		log.Fatalf("Failed to parse line items: %v", err)
	}
	if len(items) == 0 {
		log.Fatal("No line items found in file")
	}

	grandTotal := 0.0
	for _, item := range items {
		if !item.IsSubtotal {
			grandTotal += item.Total
		}
	}

	estimateName := *name
	if estimateName == "" {
		estimateName = strings.TrimSuffix(file.Name(), ".csv")
	}

	log.Printf("Parsed %d line items, grand total $%.2f", len(items), grandTotal)

	if *dryRun {
		log.Println("DRY RUN - No changes will be made")
		printPreview(items, 20)
		return
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	email := *userEmail
	if email == "" {
		email = cfg.AdminEmail
	}
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		log.Fatalf("Failed to look up user %s: %v", email, err)
	}

	estimate, err := db.CreateEstimate(ctx, user.ID, &models.CreateEstimateRequest{
		Name:       estimateName,
		Source:     models.EstimateSource(*source),
		GrandTotal: grandTotal,
		Items:      items,
	})
	if err != nil {
		log.Fatalf("Failed to create estimate: %v", err)
	}

	log.Printf("Import complete: estimate %d (%s, %s) with %d line items",
		estimate.ID, estimate.Name, estimate.Source, len(estimate.Items))
}

// parseLineItems reads the CSV and maps columns by header name
func parseLineItems(reader io.Reader) ([]models.LineItem, error) {
	csvReader := csv.NewReader(bufio.NewReader(reader))

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"description", "total"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var items []models.LineItem
	lineNumber := 0

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed row: %v", err)
			continue
		}

		description := strings.TrimSpace(field(record, colMap, "description"))
		if description == "" {
			continue
		}

		lineNumber++
		item := models.LineItem{
			LineNumber:  lineNumber,
			Description: description,
			Quantity:    parseFloat(field(record, colMap, "quantity")),
			Unit:        strings.ToUpper(strings.TrimSpace(field(record, colMap, "unit"))),
			UnitPrice:   parseFloat(field(record, colMap, "unit_price")),
			Total:       parseFloat(field(record, colMap, "total")),
			Category:    strings.TrimSpace(field(record, colMap, "category")),
			IsSubtotal:  parseBool(field(record, colMap, "is_subtotal")),
		}
		if n := parseInt(field(record, colMap, "line_number")); n > 0 {
			item.LineNumber = n
		}

		items = append(items, item)
	}

	return items, nil
}

// field reads a named column from a record, empty when absent
func field(record []string, colMap map[string]int, name string) string {
	idx, ok := colMap[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// parseFloat handles currency formatting ($1,234.56) in amount columns
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1"
}

// printPreview shows a sample of the parsed line items
func printPreview(items []models.LineItem, limit int) {
	fmt.Printf("\n=== Preview of line items to import ===\n")
	fmt.Printf("Total: %d line items\n\n", len(items))

	for i, item := range items {
		if i >= limit {
			break
		}
		marker := ""
		if item.IsSubtotal {
			marker = " [subtotal]"
		}
		fmt.Printf("  %3d. %-40s %8.2f %-6s @ %10.2f = %10.2f%s\n",
			item.LineNumber, item.Description, item.Quantity, item.Unit,
			item.UnitPrice, item.Total, marker)
	}
}
