package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrNoTrades is returned when no trade matches the export criteria.
var ErrNoTrades = errors.New("no trades match the export criteria")

// Options configures the export behavior
type Options struct {
	Format        Format
	StartTime     time.Time
	EndTime       time.Time
	Mint          string // Filter by token mint
	Side          string // Filter by side (buy/sell)
	OnlyConfirmed bool
	OutputDir     string
}

// Exporter writes journal trades to files.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("export")}
}

// Export writes the trades matching options to a new file in
// options.OutputDir and returns its path.
func (e *Exporter) Export(trades []storage.Trade, options Options) (string, error) {
	filtered := Filter(trades, options)
	if len(filtered) == 0 {
		return "", ErrNoTrades
	}

	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, filename(options, time.Now()))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := Write(file, options.Format, filtered); err != nil {
		return "", err
	}

	e.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// Filter returns the trades matching options, oldest first.
func Filter(trades []storage.Trade, options Options) []storage.Trade {
	var filtered []storage.Trade
	for _, t := range trades {
		if !options.StartTime.IsZero() && t.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && !t.CreatedAt.Before(options.EndTime) {
			continue
		}
		if options.Mint != "" && t.Mint != options.Mint {
			continue
		}
		if options.Side != "" && t.Side != options.Side {
			continue
		}
		if options.OnlyConfirmed && !t.Confirmed {
			continue
		}
		filtered = append(filtered, t)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered
}

func filename(options Options, now time.Time) string {
	prefix := "trades_all"
	if options.Side != "" {
		prefix = "trades_" + options.Side
	}
	if len(options.Mint) >= 8 {
		prefix += "_" + options.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), options.Format)
}

// Write encodes trades to w in the given format.
func Write(w io.Writer, format Format, trades []storage.Trade) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, trades)
	case FormatJSON:
		return writeJSON(w, trades)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// CSVHeaders returns the column names of a CSV export.
func CSVHeaders() []string {
	return []string{
		"id", "created_at", "side", "mint", "tranche", "reason",
		"amount_in", "quoted_out", "confirmed", "signature", "error",
	}
}

func csvRecord(t storage.Trade) []string {
	return []string{
		t.ID.String(),
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.Side,
		t.Mint,
		t.Tranche,
		t.Reason,
		strconv.FormatUint(t.AmountIn, 10),
		strconv.FormatUint(t.QuotedOut, 10),
		strconv.FormatBool(t.Confirmed),
		t.Signature,
		t.Error,
	}
}

func writeCSV(w io.Writer, trades []storage.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		if err := writer.Write(csvRecord(t)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, trades []storage.Trade) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Summary    Summary         `json:"summary"`
		Trades     []storage.Trade `json:"trades"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(trades),
		Summary:    Summarize(trades),
		Trades:     trades,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary contains statistics for exported trades. Amounts are raw quote
// token units.
type Summary struct {
	TotalTrades     int       `json:"total_trades"`
	ConfirmedTrades int       `json:"confirmed_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	TakeProfits     int       `json:"take_profits"`
	StopLosses      int       `json:"stop_losses"`
	UniqueTokens    int       `json:"unique_tokens"`
	QuoteSpent      uint64    `json:"quote_spent"`
	QuoteReceived   uint64    `json:"quote_received"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// Summarize computes statistics over trades sorted oldest first. Volumes
// count confirmed trades only.
func Summarize(trades []storage.Trade) Summary {
	summary := Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}
	summary.StartDate = trades[0].CreatedAt
	summary.EndDate = trades[len(trades)-1].CreatedAt

	tokens := make(map[string]struct{})
	for _, t := range trades {
		tokens[t.Mint] = struct{}{}

		switch t.Side {
		case "buy":
			summary.BuyCount++
		case "sell":
			summary.SellCount++
		}
		if !t.Confirmed {
			continue
		}
		summary.ConfirmedTrades++

		if t.Side == "buy" {
			summary.QuoteSpent += t.AmountIn
			continue
		}
		summary.QuoteReceived += t.QuotedOut
		switch t.Reason {
		case "take_profit":
			summary.TakeProfits++
		case "stop_loss":
			summary.StopLosses++
		}
	}
	summary.UniqueTokens = len(tokens)
	return summary
}

// DailyReport represents a daily trading report
type DailyReport struct {
	Date            time.Time       `json:"date"`
	TradeCount      int             `json:"trade_count"`
	Summary         Summary         `json:"summary"`
	HourlyBreakdown []HourlyStats   `json:"hourly_breakdown"`
	Trades          []storage.Trade `json:"trades"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int `json:"hour"`
	TradeCount int `json:"trade_count"`
	BuyCount   int `json:"buy_count"`
	SellCount  int `json:"sell_count"`
}

// ExportDailyReport writes the report for the day containing date. It
// returns an empty path when there were no trades that day.
func (e *Exporter) ExportDailyReport(trades []storage.Trade, date time.Time, outputDir string) (string, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	filtered := Filter(trades, Options{
		StartTime: startOfDay,
		EndTime:   startOfDay.AddDate(0, 0, 1),
	})
	if len(filtered) == 0 {
		e.logger.Info("No trades for daily report", zap.Time("date", startOfDay))
		return "", nil
	}

	report := DailyReport{
		Date:            startOfDay,
		TradeCount:      len(filtered),
		Summary:         Summarize(filtered),
		HourlyBreakdown: hourlyBreakdown(filtered),
		Trades:          filtered,
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102")))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	e.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("trades", len(filtered)))
	return outputPath, nil
}

func hourlyBreakdown(trades []storage.Trade) []HourlyStats {
	var hours [24]HourlyStats
	for _, t := range trades {
		h := &hours[t.CreatedAt.Hour()]
		h.TradeCount++
		switch t.Side {
		case "buy":
			h.BuyCount++
		case "sell":
			h.SellCount++
		}
	}

	var breakdown []HourlyStats
	for hour, stats := range hours {
		if stats.TradeCount == 0 {
			continue
		}
		stats.Hour = hour
		breakdown = append(breakdown, stats)
	}
	return breakdown
}
