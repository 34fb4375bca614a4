package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/yourusername/examprep-api/internal/config"
	pgRepo "github.com/yourusername/examprep-api/internal/repository/postgres"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/pkg/database"
)

// Обслуживание схемы без запуска API:
//
//	migrate                     применить все миграции
//	migrate -version            показать текущую версию
//	migrate -down 1             откатить последнюю миграцию
//	migrate -force 3            снять dirty, выставив версию 3
//	migrate -recompute-ranks 12 пересчитать места по тесту 12
func main() {
	var (
		configPath     = flag.String("config", "", "путь к config.yaml (по умолчанию CONFIG_PATH или config/config.yaml)")
		migrationsPath = flag.String("path", database.DefaultMigrationsPath, "каталог с SQL-миграциями")
		showVersion    = flag.Bool("version", false, "показать версию схемы")
		downSteps      = flag.Int("down", 0, "откатить указанное число миграций")
		forceVersion   = flag.Int("force", -1, "принудительно выставить версию схемы")
		recomputeTest  = flag.Uint("recompute-ranks", 0, "пересчитать места и перцентили теста с этим ID")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch {
	case *showVersion:
		version, dirty, err := database.SchemaVersion(db, *migrationsPath)
		if err != nil {
			log.Fatalf("Failed to read schema version: %v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	case *forceVersion >= 0:
		if err := database.ForceVersion(db, *migrationsPath, *forceVersion); err != nil {
			log.Fatalf("Failed to force version: %v", err)
		}
	case *downSteps > 0:
		if err := database.RollbackDB(db, *migrationsPath, *downSteps); err != nil {
			log.Fatalf("Failed to roll back: %v", err)
		}
	case *recomputeTest > 0:
		// Кеш не нужен: пересчет читает попытки напрямую из БД
		catalog := service.NewCatalogService(pgRepo.NewTestRepo(db), nil, nil, 0)
		attempts := service.NewAttemptService(pgRepo.NewAttemptRepo(db), catalog, nil, nil, nil)

		standings, err := attempts.RecalculateRanks(context.Background(), uint(*recomputeTest))
		if err != nil {
			log.Fatalf("Failed to recalculate ranks for test %d: %v", *recomputeTest, err)
		}
		fmt.Printf("test %d: ranked %d attempts\n", *recomputeTest, len(standings))
	default:
		if err := database.MigrateDB(db, *migrationsPath); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
	}
}
