package main

import (
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/kladdkaka/internal/app"
	"github.com/shrimpsizemoose/kladdkaka/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	ledgerHandler := handlers.NewLedgerHandler(service)
	eventHandler := handlers.NewEventHandler(service)

	http.HandleFunc("POST /api/v1/{course}/engagement", eventHandler.HandleEngagement)
	http.HandleFunc("POST /api/v1/{course}/attendance/{lecture}", eventHandler.HandleAttendance)
	http.HandleFunc("GET /api/v1/{course}/attendance/{lecture}", eventHandler.HandleAttendanceList)
	http.HandleFunc("POST /api/v1/{course}/homework/{assignment}", eventHandler.HandleSubmission)
	http.HandleFunc("POST /api/v1/{course}/homework/{assignment}/grade", eventHandler.HandleGrade)
	http.HandleFunc("POST /api/v1/{course}/bonus", ledgerHandler.HandleBonus)
	http.HandleFunc("GET /api/v1/users/{user}/ledger", ledgerHandler.HandleHistory)
	http.HandleFunc("GET /api/v1/users/{user}/balance", ledgerHandler.HandleBalance)
	http.HandleFunc("GET /api/v1/leaderboard", ledgerHandler.HandleLeaderboard)
	http.HandleFunc("POST /api/v1/admin/promote", ledgerHandler.HandlePromote)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting kladdkaka server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Kladdkaka server failed: %v", err)
	}
}
