// Command seed loads a development database with an admin, a trainee, a
// funded writer and a handful of tasks, and prints bearer tokens for each
// account.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/database"
	"github.com/scribeworks/backend/internal/metrics"
	mW "github.com/scribeworks/backend/internal/middleware"
	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/services"
	"github.com/scribeworks/backend/internal/store/postgres"
)

type seedAccount struct {
	id    string
	role  models.Role
	phone string
	funds string
}

var accounts = []seedAccount{
	{id: "seed-admin", role: models.RoleAdmin, phone: "+2348000000001", funds: "0"},
	{id: "seed-trainee", role: models.RoleTrainee, phone: "+2348000000002", funds: "0"},
	{id: "seed-writer", role: models.RoleWriter, phone: "+2348000000003", funds: "50.00"},
}

var tasks = []services.CreateTaskRequest{
	{
		Kind:              models.TaskKindAssessment,
		TimeLimit:         30,
		ReferenceImageURL: "/media/tasks/assessment-1.png",
		ReferenceText:     "Received from Ade the sum of five thousand naira for maize",
	},
	{
		Kind:              models.TaskKindAssessment,
		TimeLimit:         30,
		ReferenceImageURL: "/media/tasks/assessment-2.png",
		ReferenceText:     "Market day ledger: tomatoes 12 baskets, peppers 4 baskets",
	},
	{
		Kind:              models.TaskKindPaid,
		Deposit:           decimal.RequireFromString("5.00"),
		Reward:            decimal.RequireFromString("10.00"),
		TimeLimit:         60,
		ReferenceImageURL: "/media/tasks/paid-1.png",
		ReferenceText:     "Cooperative minutes, third quarter, members present fourteen",
	},
}

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")
	flag.Parse()

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.ReadInConfig()

	log := logrus.New()
	ctx := context.Background()

	db, err := database.InitDB(ctx, database.GetConfig(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	if err := database.Migrate(db, log); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	st := postgres.New(db)
	auditLog := audit.NewLogger(log)
	vh := services.NewValidationHelper()
	ledger := services.NewLedger()
	rec := metrics.NewNoOpCollector()
	wallet := services.NewWalletService(st, ledger, auditLog, rec, log)
	registry := services.NewTaskRegistry(st, wallet, vh, services.NopPublisher{}, auditLog, rec, log)
	accountService := services.NewAccountService(st, ledger, vh, auditLog, log)

	for _, a := range accounts {
		acct, err := accountService.EnsureAccount(ctx, a.id, a.role, a.phone)
		if err != nil {
			log.WithError(err).Fatalf("Failed to create account %s", a.id)
		}
		funds := decimal.RequireFromString(a.funds)
		if missing := funds.Sub(acct.Balance); missing.IsPositive() {
			if _, _, err := wallet.Adjust(ctx, a.id, missing, "seed"); err != nil {
				log.WithError(err).Fatalf("Failed to fund account %s", a.id)
			}
		}
	}

	existing, err := registry.ListTasks(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to list tasks")
	}
	if len(existing) == 0 {
		for _, req := range tasks {
			task, err := registry.CreateTask(ctx, req)
			if err != nil {
				log.WithError(err).Fatal("Failed to create task")
			}
			log.Infof("Created %s task %d", task.Kind, task.ID)
		}
	}

	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		log.Warn("JWT_SECRET_KEY not set, skipping tokens")
		return
	}
	for _, a := range accounts {
		claims := mW.Claims{
			Role:        string(a.role),
			PhoneNumber: a.phone,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   a.id,
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(*tokenTTL)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			log.WithError(err).Fatal("Failed to sign token")
		}
		fmt.Printf("%-8s %s\n", a.role, signed)
	}
}
