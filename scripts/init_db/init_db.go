package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_geofences_table(ctx, conn)
	step2_alerts_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_zones/seed_zones.go")
}

func step1_geofences_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: geofences table ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofences (
			id             BIGSERIAL   PRIMARY KEY,
			user_id        BIGINT      NOT NULL,
			name           TEXT        NOT NULL,

			-- GeoJSON Polygon: the first coordinate ring is the outer
			-- boundary, [lng, lat] pairs, first vertex repeated as last
			polygon        TEXT        NOT NULL,

			alert_on_enter BOOLEAN     NOT NULL DEFAULT true,
			alert_on_exit  BOOLEAN     NOT NULL DEFAULT false,
			is_active      BOOLEAN     NOT NULL DEFAULT true,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, "geofences table created")
}

func step2_alerts_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: alerts table ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (
			id              BIGSERIAL   PRIMARY KEY,
			user_id         BIGINT      NOT NULL,
			alert_type      TEXT        NOT NULL,
			title           TEXT        NOT NULL,
			message         TEXT        NOT NULL,
			severity        TEXT        NOT NULL,
			vehicle_id      TEXT        NOT NULL,
			geofence_id     BIGINT      REFERENCES geofences(id),
			is_read         BOOLEAN     NOT NULL DEFAULT false,
			is_acknowledged BOOLEAN     NOT NULL DEFAULT false,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_alert_type CHECK (
				alert_type IN ('geofence_enter', 'geofence_exit')
			),
			CONSTRAINT chk_severity CHECK (
				severity IN ('info', 'warning', 'critical')
			)
		);
	`, "alerts table created")
}

func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_geofences_active",
			sql: `CREATE INDEX IF NOT EXISTS idx_geofences_active
				  ON geofences (id) WHERE is_active;`,
			why: "query: active zones on every refresh tick",
		},
		{
			name: "idx_geofences_user",
			sql: `CREATE INDEX IF NOT EXISTS idx_geofences_user
				  ON geofences (user_id);`,
			why: "query: one owner's zones",
		},
		{
			name: "idx_alerts_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_created
				  ON alerts (created_at DESC);`,
			why: "query: most recent alerts",
		},
		{
			name: "idx_alerts_unread",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_unread
				  ON alerts (created_at DESC) WHERE NOT is_read;`,
			why: "query: unread alerts only (partial index)",
		},
		{
			name: "idx_alerts_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle
				  ON alerts (vehicle_id, created_at DESC);`,
			why: "query: alert history for one vehicle",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-30s ← %s", idx.name, idx.why),
		)
	}
}

func step4_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Verification ────────────────────────")

	tables := []string{"geofences", "alerts"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('geofences', 'alerts')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
