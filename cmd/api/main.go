package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/forkthebill/backend/docs"
	"github.com/forkthebill/backend/internal/config"
	"github.com/forkthebill/backend/internal/database"
	"github.com/forkthebill/backend/internal/expense"
	"github.com/forkthebill/backend/internal/receipt"
	"github.com/forkthebill/backend/pkg/logging"
	mw "github.com/forkthebill/backend/pkg/middleware"
)

// @title        Fork the Bill API
// @version      1.0
// @description  Split a restaurant bill by claiming items; tax, service charge and discount are shared proportionally.
// @BasePath     /
func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	if envErr != nil {
		slog.Info("no .env file found, using environment variables")
	}

	var store expense.Store
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store = expense.NewMemoryStore()
	} else {
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")
		store = expense.NewPostgresStore(db)
	}

	parser := receipt.NewHTTPParser(cfg.ReceiptParserURL, cfg.ReceiptParserKey)

	expenseService := expense.NewService(store, parser)
	expenseHandler := expense.NewHandler(expenseService)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/expense", expenseHandler.Routes())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	addr := ":" + cfg.Port
	slog.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
