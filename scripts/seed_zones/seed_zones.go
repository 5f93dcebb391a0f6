package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// demo zones around central Tokyo
var demoZones = []struct {
	name    string
	polygon string
	onEnter bool
	onExit  bool
}{
	{
		name:    "Tokyo Station Area",
		polygon: `{"type":"Polygon","coordinates":[[[139.760,35.686],[139.774,35.686],[139.774,35.675],[139.760,35.675],[139.760,35.686]]]}`,
		onEnter: true,
		onExit:  true,
	},
	{
		name:    "Shinjuku District",
		polygon: `{"type":"Polygon","coordinates":[[[139.690,35.700],[139.710,35.700],[139.710,35.685],[139.690,35.685],[139.690,35.700]]]}`,
		onEnter: true,
		onExit:  false,
	},
	{
		name:    "Depot Perimeter",
		polygon: `{"type":"Polygon","coordinates":[[[139.740,35.660],[139.750,35.660],[139.750,35.652],[139.740,35.652],[139.740,35.660]]]}`,
		onEnter: false,
		onExit:  true,
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		seedGetEnv("DB_USER", "fleet_user"),
		seedGetEnv("DB_PASSWORD", "fleet_password"),
		seedGetEnv("DB_HOST", "localhost"),
		seedGetEnv("DB_PORT", "5432"),
		seedGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure the schema exists:\n  go run scripts/init_db/init_db.go", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_zones(ctx, conn)
	step2_verify(ctx, conn)

	fmt.Println("\n✅ Demo geofences seeded")
	fmt.Println("   Run next: go run cmd/realtime/main.go")
}

func step1_zones(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Seeding geofences ───────────────────")

	for _, z := range demoZones {
		_, err := conn.Exec(ctx, `
			INSERT INTO geofences (user_id, name, polygon, alert_on_enter, alert_on_exit, is_active)
			SELECT 1, $1, $2, $3, $4, true
			WHERE NOT EXISTS (SELECT 1 FROM geofences WHERE name = $1)
		`, z.name, z.polygon, z.onEnter, z.onExit)
		if err != nil {
			log.Fatalf("Failed to seed zone %q: %v", z.name, err)
		}
		fmt.Printf("  ✓ %-22s enter=%-5v exit=%v\n", z.name, z.onEnter, z.onExit)
	}
}

func step2_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Verification ────────────────────────")

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM geofences WHERE is_active`).Scan(&count); err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d active geofences in Postgres\n", count)

	var name string
	if err := conn.QueryRow(ctx, `SELECT name FROM geofences ORDER BY id LIMIT 1`).Scan(&name); err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: first zone → %s\n", name)
}

func seedGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
