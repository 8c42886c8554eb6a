package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/jhquant/internal/audit"
	"github.com/wonny/jhquant/internal/marketdata"
	"github.com/wonny/jhquant/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

이 명령어는:
- config에서 DATABASE_URL 로드
- 데이터베이스 연결 생성
- Health Check 실행
- stock_daily 스키마 확인 및 행 수 표시

Example:
  go run ./cmd/quant test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== JH-quant Database Connection Test ===")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	fmt.Println("✅ Health Check Results:")
	fmt.Printf("   Healthy: %v\n", status.Healthy)
	fmt.Printf("   Response Time: %v\n", status.ResponseTime)

	fmt.Println("📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Printf("   Idle Connections: %d\n", status.Stats.IdleConns)

	repo := marketdata.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("❌ Schema check failed: %w", err)
	}
	rows, err := repo.CountBars(ctx)
	if err != nil {
		return fmt.Errorf("❌ Count failed: %w", err)
	}
	fmt.Printf("📉 stock_daily rows: %d (minimum for a run: %d)\n", rows, cfg.Strategy.MinDataRows)

	journal := audit.NewRepository(db.Pool)
	if err := journal.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("❌ Run journal schema check failed: %w", err)
	}
	fmt.Println("🗂  screening_runs table ready")

	fmt.Println("\n✅ All tests passed!")
	return nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
