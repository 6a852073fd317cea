package main

import (
	"context"
	"log"
	"order-consolidation/internal/adapters/cache"
	"order-consolidation/internal/adapters/ors"
	"order-consolidation/internal/adapters/repositories"
	"order-consolidation/internal/config"
	"order-consolidation/internal/platform/db"
	"order-consolidation/internal/ports"
	"strings"
)

// dbtool creates the schema in DATABASE_URL and, when ORDERS_PATH is set,
// replaces the orders table with the contents of that JSON file.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	conn, dialect, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ctx := context.Background()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn, dialect); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	ordersPath := config.Get("ORDERS_PATH", "")
	if ordersPath == "" {
		return
	}

	var geocoder ports.Geocoder
	if cfg.ORS.APIKey != "" {
		client, err := ors.NewClient(cfg.ORS.APIKey, cfg.ORS.BaseURL, cfg.ORS.Profile, cfg.ORS.RatePerSecond)
		if err != nil {
			log.Fatal(err)
		}
		g, err := ors.NewGeocoder(client, cache.NewSQLGeocodeCache(conn, dialect), cfg.ORS.Country)
		if err != nil {
			log.Fatal(err)
		}
		geocoder = g
	}

	log.Printf("Importing orders from %s...", ordersPath)
	orders, err := repositories.NewFileOrderRepository(ordersPath, geocoder).ListOrders(ctx)
	if err != nil {
		log.Fatalf("reading orders failed: %v", err)
	}
	if err := repositories.NewSQLOrderRepository(conn, dialect).ImportOrders(ctx, orders); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("Imported %d orders.", len(orders))
}
