package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// Утилита разовой очистки otp_challenges: удаляет истёкшие и использованные
// челленджи. Приложение делает то же самое фоновым тикером; утилита нужна для
// ручного запуска по cron на окружениях, где API-процесс не запущен постоянно.
func main() {
	dryRun := flag.Bool("dry-run", false, "посчитать строки, ничего не удаляя")
	flag.Parse()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("DATABASE_HOST", "localhost"),
		envOr("DATABASE_PORT", "5432"),
		envOr("DATABASE_USER", "postgres"),
		os.Getenv("DATABASE_PASSWORD"),
		envOr("DATABASE_DBNAME", "storefront_db"),
		envOr("DATABASE_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	const where = "expires_at < NOW() OR verified_at IS NOT NULL"

	if *dryRun {
		var count int64
		if err := db.QueryRow("SELECT COUNT(*) FROM otp_challenges WHERE " + where).Scan(&count); err != nil {
			log.Fatalf("Failed to count stale challenges: %v", err)
		}
		fmt.Printf("Would delete %d stale otp challenges\n", count)
		return
	}

	result, err := db.Exec("DELETE FROM otp_challenges WHERE " + where)
	if err != nil {
		log.Fatalf("Failed to delete stale challenges: %v", err)
	}

	removed, _ := result.RowsAffected()
	fmt.Printf("Deleted %d stale otp challenges\n", removed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
