package upstream

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNormalizeDaysFieldPriority(t *testing.T) {
	rows, err := decodeRecords([]byte(`{"data":[{
		"bdate":"2024-03-05",
		"date":"",
		"turnover":"1,250.00",
		"purchases":0,
		"purchases_value":"800",
		"num_transactions":"15",
		"sales_transactions":99,
		"dispensary_turnover":700,
		"front_shop_turnover":550,
		"scripts_qty":"11",
		"closing_stock":"45000"
	}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	days := NormalizeDays(5, rows)
	if len(days) != 1 {
		t.Fatalf("expected one day, got %d", len(days))
	}
	d := days[0]
	if !d.Date.Equal(metrics.Date(2024, time.March, 5)) {
		t.Fatalf("unexpected date %s", d.Date)
	}
	if !d.Turnover.Equal(dec("1250")) {
		t.Fatalf("unexpected turnover %s", d.Turnover)
	}
	if !d.Purchases.Equal(dec("800")) {
		t.Fatalf("expected zero purchases to fall through, got %s", d.Purchases)
	}
	if d.TransactionCount != 15 {
		t.Fatalf("expected first non-zero transaction key, got %d", d.TransactionCount)
	}
	if !d.FrontShopTurnover.Equal(dec("550")) || d.ScriptsQty != 11 || !d.ClosingStock.Equal(dec("45000")) {
		t.Fatalf("unexpected fields: %+v", d)
	}
	if !d.GrossProfitValue.IsZero() {
		t.Fatalf("missing gp should default to zero, got %s", d.GrossProfitValue)
	}
}

func TestDecodeRecordsEmpty(t *testing.T) {
	for _, payload := range []string{"", "null", "{}", `{"days":null}`, "[]"} {
		rows, err := decodeRecords([]byte(payload))
		if err != nil {
			t.Fatalf("%q: %v", payload, err)
		}
		if len(rows) != 0 {
			t.Fatalf("%q: expected no rows, got %d", payload, len(rows))
		}
	}
}

func TestNormalizeTargetsNullAndUnknown(t *testing.T) {
	targets, err := NormalizeTargets(1, []byte(`{"targets":null}`))
	if err != nil || len(targets) != 0 {
		t.Fatalf("expected empty targets, got %v %v", targets, err)
	}
	if _, err := NormalizeTargets(1, []byte(`{"targets":42}`)); err == nil {
		t.Fatalf("expected error for scalar targets")
	}
}
