// Package report exports reservations and battles to Excel workbooks for the
// venue's back office.
package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"quadra/internal/models"
)

// Store provides the reads a report needs.
type Store interface {
	ListReservationsByDateRange(ctx context.Context, from, to string) ([]models.Reservation, error)
	ListBattles(ctx context.Context, status models.BattleStatus) ([]models.Battle, error)
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
}

// Reporter builds Excel exports.
type Reporter struct {
	store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// workbook wraps excelize with a cursor so callers append rows without
// tracking coordinates.
type workbook struct {
	file  *excelize.File
	sheet string
	row   int
}

func newWorkbook() *workbook {
	return &workbook{file: excelize.NewFile()}
}

func (w *workbook) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *workbook) writeHeader(columns []string) error {
	if err := w.writeRow(toAny(columns)); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.row-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
		_ = w.file.SetCellStyle(w.sheet, startCell, endCell, style)
	}
	return nil
}

func (w *workbook) writeRow(values []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func toAny(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// Reservations writes one sheet of reservations between from and to
// (inclusive, "YYYY-MM-DD") plus a battles sheet, and streams the workbook
// to wr.
func (r *Reporter) Reservations(ctx context.Context, from, to string, wr io.Writer) error {
	reservations, err := r.store.ListReservationsByDateRange(ctx, from, to)
	if err != nil {
		return err
	}

	wb := newWorkbook()
	defer wb.file.Close()

	if err := wb.addSheet("Reservas"); err != nil {
		return err
	}
	header := []string{"ID", "Quadra", "Data", "Início", "Fim", "Status", "Cliente", "Telefone", "Valor (R$)", "Promoção"}
	if err := wb.writeHeader(header); err != nil {
		return err
	}

	courtNames := map[int64]string{}
	var total float64
	for _, res := range reservations {
		name, ok := courtNames[res.CourtID]
		if !ok {
			if court, err := r.store.GetCourt(ctx, res.CourtID); err == nil {
				name = court.Name
			} else {
				name = fmt.Sprintf("#%d", res.CourtID)
			}
			courtNames[res.CourtID] = name
		}
		promo := ""
		if res.AppliedPromotionID != 0 {
			promo = fmt.Sprintf("#%d", res.AppliedPromotionID)
		}
		row := []interface{}{
			res.ID, name, res.Date, res.StartTime, res.EndTime,
			string(res.Status), res.ClientName, res.ClientPhone, res.TotalPrice, promo,
		}
		if err := wb.writeRow(row); err != nil {
			return err
		}
		if res.Status.Active() {
			total += res.TotalPrice
		}
	}
	if err := wb.writeRow([]interface{}{"", "", "", "", "", "", "", "Total ativo", total, ""}); err != nil {
		return err
	}

	if err := r.battlesSheet(ctx, wb); err != nil {
		return err
	}
	return wb.file.Write(wr)
}

func (r *Reporter) battlesSheet(ctx context.Context, wb *workbook) error {
	battles, err := r.store.ListBattles(ctx, "")
	if err != nil {
		return err
	}
	if err := wb.addSheet("Batalhas"); err != nil {
		return err
	}
	header := []string{"ID", "Nome", "Modalidade", "Formato", "Status", "Sets T1", "Sets T2", "Set Atual", "Melhor de"}
	if err := wb.writeHeader(header); err != nil {
		return err
	}
	for _, b := range battles {
		row := []interface{}{
			b.ID, b.Name, b.Modality, b.Format, string(b.Status),
			b.Team1Score, b.Team2Score, b.CurrentSet, b.BestOf,
		}
		if err := wb.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

// SaveReservations writes the report to a file on disk.
func (r *Reporter) SaveReservations(ctx context.Context, from, to, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Reservations(ctx, from, to, f)
}
