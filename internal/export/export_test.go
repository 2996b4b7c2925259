package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/assettrack/internal/model"
)

func TestWriteAssets(t *testing.T) {
	price := 1200.5
	site := int64(3)
	assets := []model.Asset{
		{ID: 1, AssetTag: "A-001", Name: "Laptop", Location: "Warehouse A", Status: model.AssetStatusActive,
			Condition: model.ConditionGood, PurchasePrice: &price, SiteID: &site, HasDiscrepancy: true,
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: 2, Name: "Projector", Status: model.AssetStatusLost, Condition: model.ConditionPoor},
	}

	var buf bytes.Buffer
	if err := WriteAssets(&buf, assets); err != nil {
		t.Fatalf("WriteAssets: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][3] != "Name" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][1] != "A-001" || rows[1][3] != "Laptop" || rows[1][10] != "Warehouse A" {
		t.Errorf("unexpected first row %v", rows[1])
	}
	if rows[1][8] != "1200.5" || rows[1][11] != "3" {
		t.Errorf("unexpected numeric cells %q %q", rows[1][8], rows[1][11])
	}
	if rows[1][17] != "TRUE" {
		t.Errorf("expected discrepancy flag TRUE, got %q", rows[1][17])
	}
	if rows[2][3] != "Projector" || rows[2][15] != model.AssetStatusLost {
		t.Errorf("unexpected second row %v", rows[2])
	}
}

func TestWriteAssetsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAssets(&buf, nil); err != nil {
		t.Fatalf("WriteAssets: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	if got != "assets_20240501_103000.xlsx" {
		t.Errorf("FileName = %q", got)
	}
}
