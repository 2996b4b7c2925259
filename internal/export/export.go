// Package export renders asset lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/assettrack/internal/model"
)

// SheetName is the worksheet holding the asset rows.
const SheetName = "Assets"

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var assetHeader = []any{
	"ID", "Asset tag", "Serial number", "Name", "Category", "Model", "Manufacturer",
	"Purchase date", "Purchase price", "Current value", "Location", "Site ID", "Location ID",
	"Custodian", "Department", "Status", "Condition", "Has discrepancy", "Last scanned",
	"Created",
}

// FileName returns a timestamped file name for an asset export.
func FileName(t time.Time) string {
	return fmt.Sprintf("assets_%s.xlsx", t.Format("20060102_150405"))
}

// WriteAssets writes a workbook with one header row and one row per asset.
func WriteAssets(w io.Writer, assets []model.Asset) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := assetHeader
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, a := range assets {
		row := []any{
			a.ID, a.AssetTag, a.SerialNumber, a.Name, a.Category, a.Model, a.Manufacturer,
			date(a.PurchaseDate), number(a.PurchasePrice), number(a.CurrentValue), a.Location,
			id(a.SiteID), id(a.LocationID), a.Custodian, a.Department, a.Status, a.Condition,
			a.HasDiscrepancy, date(a.LastScannedAt), a.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("locating row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing asset %d: %w", a.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func date(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func number(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func id(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}
