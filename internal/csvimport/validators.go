package csvimport

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidationError tags one field failure on one 1-based CSV row.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Row is a validated, typed CSV row ready for mapping.
type Row struct {
	Date     string  `json:"date"`
	Equity   float64 `json:"equity"`
	DailyPnL float64 `json:"daily_pnl"`
	TotalPnL float64 `json:"total_pnl"`
	Copiers  int     `json:"copiers"`
	AUM      float64 `json:"aum"`
	Notes    string  `json:"notes,omitempty"`
}

// IsValidDateString reports whether s is a well-formed YYYY-MM-DD date
// naming a real calendar day.
func IsValidDateString(s string) bool {
	if !isoDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// IsNotFutureDate reports whether s is a valid date no later than now.
func IsNotFutureDate(s string) bool {
	if !IsValidDateString(s) {
		return false
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return !d.After(time.Now())
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ValidateRow checks one raw key-value row and either returns the typed
// row or the complete list of field errors. All violations are
// accumulated so the uploader can fix a file in a single round trip.
// rowIndex is the 1-based line number in the file (header is line 1).
func ValidateRow(raw map[string]string, rowIndex int) (Row, []ValidationError) {
	var errs []ValidationError
	fail := func(field, message string) {
		errs = append(errs, ValidationError{Row: rowIndex, Field: field, Message: message})
	}

	date := strings.TrimSpace(raw["date"])
	switch {
	case date == "":
		fail("date", "Fecha es requerida")
	case !IsValidDateString(date):
		fail("date", "Formato de fecha inválido (usar YYYY-MM-DD)")
	case !IsNotFutureDate(date):
		fail("date", "La fecha no puede ser futura")
	}

	equity, ok := parseFinite(raw["equity"])
	if !ok {
		fail("equity", "Equity debe ser un número")
	} else if math.IsInf(equity, 0) || equity <= 0 {
		fail("equity", "Equity debe ser mayor a 0")
	}

	dailyPnL := 0.0
	if v := strings.TrimSpace(raw["daily_pnl"]); v != "" {
		parsed, ok := parseFinite(v)
		if !ok || math.IsInf(parsed, 0) {
			fail("daily_pnl", "Daily P&L debe ser un número")
		} else {
			dailyPnL = parsed
		}
	}

	totalPnL := 0.0
	if v := strings.TrimSpace(raw["total_pnl"]); v != "" {
		parsed, ok := parseFinite(v)
		if !ok || math.IsInf(parsed, 0) {
			fail("total_pnl", "Total P&L debe ser un número")
		} else {
			totalPnL = parsed
		}
	}

	copiers := 0
	if v := strings.TrimSpace(raw["copiers"]); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			fail("copiers", "Copiers debe ser un número entero no negativo")
		} else {
			copiers = parsed
		}
	}

	aum := 0.0
	if v := strings.TrimSpace(raw["aum"]); v != "" {
		parsed, ok := parseFinite(v)
		if !ok || math.IsInf(parsed, 0) || parsed < 0 {
			fail("aum", "AUM debe ser un número no negativo")
		} else {
			aum = parsed
		}
	}

	if len(errs) > 0 {
		return Row{}, errs
	}
	return Row{
		Date:     date,
		Equity:   equity,
		DailyPnL: dailyPnL,
		TotalPnL: totalPnL,
		Copiers:  copiers,
		AUM:      aum,
		Notes:    strings.TrimSpace(raw["notes"]),
	}, nil
}
