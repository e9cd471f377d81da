package repository

import (
	"fmt"
	"strings"
	"time"

	"firstaid-vitals/internal/models"

	"github.com/xuri/excelize/v2"
)

// AlertsSheetName 导出工作表名称
const AlertsSheetName = "Vital Alerts"

var alertExportHeaders = []string{
	"Triggered At",
	"Session ID",
	"Platform",
	"Injury Type",
	"Injury Severity",
	"Heart Rate",
	"Blood Pressure",
	"SpO2",
	"Temperature",
	"Respiration Rate",
	"Critical Details",
	"Warnings",
	"Recommendation",
}

var alertExportWidths = []float64{22, 38, 12, 20, 15, 12, 15, 10, 12, 16, 60, 60, 50}

// ExportAlertsExcel 将告警列表导出为 Excel 文件
func ExportAlertsExcel(alerts []models.VitalAlert) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AlertsSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE9E7"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range alertExportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(AlertsSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(AlertsSheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(AlertsSheetName, name, name, alertExportWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, alert := range alerts {
		row := i + 2 // 第1行是表头
		for col, value := range alertRow(alert) {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(AlertsSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func alertRow(a models.VitalAlert) []string {
	vs := a.VitalSigns
	row := make([]string, len(alertExportHeaders))
	row[0] = a.TriggeredAt.UTC().Format(time.RFC3339)
	row[1] = a.SessionID
	row[2] = string(a.Platform)
	row[3] = a.InjuryType
	row[4] = string(a.InjurySeverity)
	if vs.HeartRate != nil {
		row[5] = fmt.Sprintf("%d", *vs.HeartRate)
	}
	if vs.BloodPressure != nil {
		row[6] = fmt.Sprintf("%d/%d", vs.BloodPressure.Systolic, vs.BloodPressure.Diastolic)
	}
	if vs.OxygenSaturation != nil {
		row[7] = fmt.Sprintf("%g", *vs.OxygenSaturation)
	}
	if vs.Temperature != nil {
		row[8] = fmt.Sprintf("%.1f", *vs.Temperature)
	}
	if vs.RespirationRate != nil {
		row[9] = fmt.Sprintf("%d", *vs.RespirationRate)
	}

	details := make([]string, 0, len(a.CriticalDetails))
	for _, d := range a.CriticalDetails {
		details = append(details, fmt.Sprintf("%s %s (%s)", d.Metric, d.Value, d.Severity))
	}
	row[10] = strings.Join(details, "; ")
	row[11] = strings.Join(a.Warnings, "; ")
	row[12] = a.Recommendation
	return row
}
