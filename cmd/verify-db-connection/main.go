package main

import (
	"fmt"
	"log"

	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/db"
)

// Verifies the database connection and that the amount columns carry the
// varchar(78) width needed for uint256 decimal strings.
func main() {
	fmt.Println("🔍 Verifying database connection and column sizes...")

	// Load config
	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db.InitDB()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	checks := []struct {
		table  string
		column string
	}{
		{"balances", "amount"},
		{"ledger_entries", "delta"},
		{"deals", "amount"},
		{"sessions", "deposit"},
		{"sessions", "used"},
		{"gateways", "price_per_request"},
		{"cross_chain_settlements", "amount"},
		{"cross_chain_settlements", "fee"},
	}

	allOK := true
	for _, check := range checks {
		var size int
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2`,
			check.table, check.column,
		).Scan(&size)
		if err != nil {
			fmt.Printf("❌ %s.%s: %v\n", check.table, check.column, err)
			allOK = false
			continue
		}
		if size < 78 {
			fmt.Printf("❌ %s.%s: varchar(%d), expected at least varchar(78)\n", check.table, check.column, size)
			allOK = false
			continue
		}
		fmt.Printf("✅ %s.%s: varchar(%d)\n", check.table, check.column, size)
	}

	if !allOK {
		log.Fatal("❌ Schema verification failed")
	}
	fmt.Println("✅ Schema verification passed")
}
