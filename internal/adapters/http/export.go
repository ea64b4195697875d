package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

const exportSheet = "Customers"

// ExportCustomersHandler streams the registry as an XLSX workbook.
func ExportCustomersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customers, err := deps.Customers.List(c.UserContext())
		if err != nil {
			return writeDomainError(c, err)
		}

		f, err := customersWorkbook(customers)
		if err != nil {
			return errInternal(c, err.Error())
		}
		defer func() { _ = f.Close() }()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return errInternal(c, err.Error())
		}

		name := fmt.Sprintf("customers-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Send(buf.Bytes())
	}
}

func customersWorkbook(customers []domain.Customer) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	header := []any{"ID", "Name", "Latitude", "Longitude", "Contact"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "E1", bold); err != nil {
		return nil, err
	}

	for i, cu := range customers {
		row := []any{cu.ID, cu.Name, cu.Latitude, cu.Longitude, cu.Contact}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(exportSheet, "B", "B", 32)
	_ = f.SetColWidth(exportSheet, "C", "D", 12)
	_ = f.SetColWidth(exportSheet, "E", "E", 24)
	return f, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
