package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Sheet names in xlsx files are capped at 31 characters.
const maxSheetNameLen = 31

var exportHeader = []interface{}{
	"ID", "IP Address", "User Agent", "Browser", "Platform",
	"Mobile", "Language", "Referrer", "Time",
}

var exportColWidths = []float64{15, 20, 100, 20, 15, 10, 15, 30, 20}

type ExportService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportService(db *gorm.DB, logger *slog.Logger) *ExportService {
	return &ExportService{db: db, logger: logger}
}

// Export serializes the raw (non-deduplicated) visits for the user's links
// into a spreadsheet. With a country filter the workbook has one sheet;
// without it, one sheet per country. Returns the file bytes and a suggested
// filename.
func (s *ExportService) Export(userID uint, country string) ([]byte, string, error) {
	var linkIDs []uint
	if err := s.db.Model(&models.Link{}).Where("user_id = ?", userID).Pluck("id", &linkIDs).Error; err != nil {
		return nil, "", err
	}

	query := s.db.Where("link_id IN ?", linkIDs)
	if country != "" {
		query = query.Where("country = ?", country)
	}

	var visits []models.Visit
	if len(linkIDs) > 0 {
		if err := query.Order("created_at desc").Find(&visits).Error; err != nil {
			return nil, "", err
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if country != "" {
		if err := writeCountrySheet(f, fmt.Sprintf("Via %s", country), visits); err != nil {
			return nil, "", err
		}
	} else {
		// Preserve first-seen country order (visits are newest first).
		grouped := map[string][]models.Visit{}
		var order []string
		for _, v := range visits {
			c := v.Country
			if c == "" {
				c = "Unknown"
			}
			if _, seen := grouped[c]; !seen {
				order = append(order, c)
			}
			grouped[c] = append(grouped[c], v)
		}
		for _, c := range order {
			if err := writeCountrySheet(f, c, grouped[c]); err != nil {
				return nil, "", err
			}
		}
	}

	// Drop the default sheet when real data sheets exist.
	if len(f.GetSheetList()) > 1 {
		f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("all_via_%s.xlsx", date)
	if country != "" {
		filename = fmt.Sprintf("via_%s_%s.xlsx", country, date)
	}

	return buf.Bytes(), filename, nil
}

func writeCountrySheet(f *excelize.File, name string, visits []models.Visit) error {
	name = sanitizeSheetName(name)
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	if err := f.SetSheetRow(name, "A1", &exportHeader); err != nil {
		return err
	}
	for i, w := range exportColWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return err
		}
	}

	for i, v := range visits {
		row := []interface{}{
			fmt.Sprintf("%d", v.ID),
			obfuscateIP(v.IP, v.Country),
			orNA(v.UserAgent),
			orNA(v.Via.Browser),
			orNA(v.Via.Platform),
			orNA(v.Via.Mobile),
			orNA(v.Via.Language),
			orNA(v.Via.Referrer),
			v.CreatedAt.Format("1/2/2006, 3:04:05 PM"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

// obfuscateIP interleaves the address with the country so exports never
// carry a raw IP: dots become colons and the uppercased country is appended.
func obfuscateIP(ip, country string) string {
	if ip == "" {
		return "N/A"
	}
	return strings.ReplaceAll(ip, ".", ":") + "." + strings.ToUpper(country)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func sanitizeSheetName(name string) string {
	// Characters xlsx forbids in sheet names.
	replacer := strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")
	name = replacer.Replace(name)
	if name == "" {
		name = "Unknown"
	}
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	return name
}
