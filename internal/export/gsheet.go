package export

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/kladdkaka/internal/app"
	"github.com/shrimpsizemoose/kladdkaka/internal/store"
)

// GSheetExporter pushes ledger totals into a course's Google Sheet on a
// cron schedule, so organizers see the leaderboard where they live.
type GSheetExporter struct {
	config        *app.Config
	store         store.LedgerStore
	scheduler     *gocron.Scheduler
	sheetsService *sheets.Service
}

func NewGSheetExporter(config *app.Config, ledger store.LedgerStore) (*gocron.Scheduler, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(time.UTC)

	for courseName, cfg := range config.GSheet {
		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}

		exporter := &GSheetExporter{
			config:        config,
			store:         ledger,
			scheduler:     scheduler,
			sheetsService: svc,
		}

		cfg := cfg
		_, err = scheduler.Cron(cfg.Schedule).Do(func() {
			if err := exporter.Export(courseName, &cfg); err != nil {
				fmt.Printf("Export failed: %v\n", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule export: %w", err)
		}
	}

	scheduler.StartAsync()
	return scheduler, nil
}

// userRowsFromSheet maps user ids in the fetched column to their absolute
// sheet row. Cells that are not strings (merged headers, stray numbers)
// are skipped rather than panicking the export run.
func userRowsFromSheet(values [][]interface{}, startRow int) map[string]int {
	rows := make(map[string]int)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		user, ok := row[0].(string)
		if !ok || user == "" {
			continue
		}
		rows[user] = i + startRow
	}
	return rows
}

func (e *GSheetExporter) Export(courseName string, cfg *app.GSheetConfig) error {
	// Read user ids first to know which row belongs to whom
	readRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.UsersRange)
	resp, err := e.sheetsService.Spreadsheets.Values.Get(cfg.SheetID, readRange).Do()
	if err != nil {
		return fmt.Errorf("failed to read users: %w", err)
	}

	userRows := userRowsFromSheet(resp.Values, 4) // users start from row 4

	for user, row := range userRows {
		total, err := e.store.TotalCredits(user)
		if err != nil {
			continue
		}

		updateRange := fmt.Sprintf("%s!%s%d", cfg.SheetName, cfg.TotalsColumn, row)
		_, err = e.sheetsService.Spreadsheets.Values.Update(cfg.SheetID, updateRange,
			&sheets.ValueRange{Values: [][]interface{}{{total}}}).ValueInputOption("RAW").Do()
		if err != nil {
			return fmt.Errorf("failed to update cell: %w", err)
		}
	}

	emoji := "✨"
	if len(e.config.EmojiVariants) > 0 {
		emoji = e.config.EmojiVariants[rand.Intn(len(e.config.EmojiVariants))]
	}
	timestamp := fmt.Sprintf("UPD: %s %s", time.Now().Format("2 January 15:04"), emoji)

	updateRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.TimestampRange)
	_, err = e.sheetsService.Spreadsheets.Values.Update(cfg.SheetID, updateRange,
		&sheets.ValueRange{Values: [][]interface{}{{timestamp}}}).ValueInputOption("RAW").Do()

	return err
}
