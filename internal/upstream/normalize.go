package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// Field priority for upstream records. The first key holding a non-empty,
// non-zero value wins.
var (
	dateKeys         = []string{"business_date", "date", "bdate"}
	turnoverKeys     = []string{"turnover"}
	gpKeys           = []string{"gp_value", "gp"}
	purchaseKeys     = []string{"purchases", "daily_purchases", "purchases_value"}
	transactionKeys  = []string{"transaction_count", "transactions", "txn_count", "num_transactions", "sales_transactions"}
	dispensaryKeys   = []string{"dispensary_turnover"}
	frontShopKeys    = []string{"frontshop_turnover", "front_shop_turnover"}
	scriptKeys       = []string{"scripts_qty", "scripts"}
	closingStockKeys = []string{"closing_stock"}
	pharmacyIDKeys   = []string{"pharmacy_id", "id"}
	pharmacyNameKeys = []string{"pharmacy_name", "name"}
	targetValueKeys  = []string{"value", "target", "amount"}
)

// listKeys are the envelope fields a list response may be wrapped in.
var listKeys = []string{"days", "pharmacies", "data", "items"}

type record map[string]any

// decodeRecords accepts a bare JSON array or an object wrapping the array in
// one of listKeys.
func decodeRecords(payload []byte) ([]record, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}
	if payload[0] == '[' {
		var out []record
		if err := decodeNumbers(payload, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var envelope map[string]json.RawMessage
	if err := decodeNumbers(payload, &envelope); err != nil {
		return nil, err
	}
	for _, key := range listKeys {
		raw, ok := envelope[key]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '[' {
			continue
		}
		var out []record
		if err := decodeNumbers(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, nil
}

func decodeNumbers(payload []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// NormalizeDays converts raw upstream rows into canonical business days.
// Rows without a parseable date are dropped.
func NormalizeDays(pharmacyID int64, rows []record) []metrics.BusinessDay {
	days := make([]metrics.BusinessDay, 0, len(rows))
	for _, row := range rows {
		date, ok := row.date(dateKeys)
		if !ok {
			continue
		}
		days = append(days, metrics.BusinessDay{
			PharmacyID:         pharmacyID,
			Date:               date,
			Turnover:           row.decimal(turnoverKeys),
			GrossProfitValue:   row.decimal(gpKeys),
			Purchases:          row.decimal(purchaseKeys),
			TransactionCount:   row.integer(transactionKeys),
			DispensaryTurnover: row.decimal(dispensaryKeys),
			FrontShopTurnover:  row.decimal(frontShopKeys),
			ScriptsQty:         row.integer(scriptKeys),
			ClosingStock:       row.decimal(closingStockKeys),
		})
	}
	return days
}

// NormalizeTargets accepts {"targets":[{date,value}]} or
// {"targets":{"YYYY-MM-DD":value}}.
func NormalizeTargets(pharmacyID int64, payload []byte) ([]metrics.Target, error) {
	var envelope struct {
		Targets json.RawMessage `json:"targets"`
	}
	if err := decodeNumbers(payload, &envelope); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(envelope.Targets)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var targets []metrics.Target
	switch raw[0] {
	case '[':
		var rows []record
		if err := decodeNumbers(raw, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			date, ok := row.date(dateKeys)
			if !ok {
				continue
			}
			targets = append(targets, metrics.Target{PharmacyID: pharmacyID, Date: date, Value: row.decimal(targetValueKeys)})
		}
	case '{':
		var byDate map[string]any
		if err := decodeNumbers(raw, &byDate); err != nil {
			return nil, err
		}
		for key, value := range byDate {
			date, ok := parseDate(key)
			if !ok {
				continue
			}
			amount, _ := toDecimal(value)
			targets = append(targets, metrics.Target{PharmacyID: pharmacyID, Date: date, Value: amount})
		}
	default:
		return nil, fmt.Errorf("%w: targets is neither list nor map", ErrMalformed)
	}
	return targets, nil
}

// NormalizePharmacies converts directory rows. Rows without an id are dropped.
func NormalizePharmacies(rows []record) []metrics.Pharmacy {
	out := make([]metrics.Pharmacy, 0, len(rows))
	for _, row := range rows {
		id := row.integer(pharmacyIDKeys)
		if id <= 0 {
			continue
		}
		name := row.text(pharmacyNameKeys)
		if name == "" {
			name = fmt.Sprintf("Pharmacy %d", id)
		}
		out = append(out, metrics.Pharmacy{ID: id, Name: name})
	}
	return out
}

func (r record) decimal(keys []string) decimal.Decimal {
	for _, key := range keys {
		if v, ok := toDecimal(r[key]); ok && !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

func (r record) integer(keys []string) int64 {
	return r.decimal(keys).Round(0).IntPart()
}

func (r record) text(keys []string) string {
	for _, key := range keys {
		switch v := r[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func (r record) date(keys []string) (time.Time, bool) {
	for _, key := range keys {
		s, ok := r[key].(string)
		if !ok {
			continue
		}
		if d, ok := parseDate(s); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if len(value) < 10 {
		return time.Time{}, false
	}
	d, err := metrics.ParseDate(value[:10])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case int64:
		return decimal.NewFromInt(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case bool:
		return decimal.Zero, false
	default:
		return decimal.Zero, false
	}
}
