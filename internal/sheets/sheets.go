// Package sheets mirrors reservations into a Google Sheet the venue staff
// already lives in. The sheet is a projection; the database stays the source
// of truth.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"quadra/internal/events"
	"quadra/internal/models"
)

var headerRow = []interface{}{
	"ID", "Quadra", "Data", "Início", "Fim", "Status", "Cliente", "Telefone", "Valor", "Criada em",
}

// Service syncs reservations into one sheet tab. Row positions are cached so
// repeated syncs update in place instead of appending duplicates.
type Service struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]int
}

// NewService authenticates with a service-account credentials file.
func NewService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*Service, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if sheetName == "" {
		sheetName = "Reservas"
	}
	return &Service{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		rowCache:      make(map[string]int),
	}, nil
}

// SyncReservations rewrites the tab with the current active reservations.
func (s *Service) SyncReservations(ctx context.Context, reservations []models.Reservation) error {
	active := filterActiveReservations(reservations)

	values := [][]interface{}{headerRow}
	for _, r := range active {
		values = append(values, reservationRowValues(&r))
	}

	clearRange := fmt.Sprintf("%s!A:J", s.sheetName)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, fmt.Sprintf("%s!A1", s.sheetName),
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.ClearCache()
	for i, r := range active {
		// Row 1 is the header.
		s.setCachedRow(r.ID, i+2)
	}

	s.logger.Info().Int("rows", len(active)).Msg("sheet sync complete")
	return nil
}

// Attach subscribes the service to reservation events so single rows stay
// fresh between periodic full syncs.
func (s *Service) Attach(bus *events.EventBus) {
	for _, eventType := range []string{
		events.ReservationCreated,
		events.ReservationConfirmed,
		events.ReservationCancelled,
	} {
		bus.Subscribe(eventType, s.onReservationEvent)
	}
}

func (s *Service) onReservationEvent(event events.Event) error {
	r, err := decodeReservation(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event", event.Type).Msg("bad reservation event payload")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.UpsertReservation(ctx, r); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("sheet upsert failed")
		return err
	}
	return nil
}

func decodeReservation(event events.Event) (*models.Reservation, error) {
	var r models.Reservation
	if err := json.Unmarshal(event.Payload, &r); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("%s payload has no reservation id", event.Type)
	}
	return &r, nil
}

// UpsertReservation updates a single reservation's row, appending when the
// row is not cached yet.
func (s *Service) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	row, cached := s.getCachedRow(r.ID)
	values := &sheets.ValueRange{Values: [][]interface{}{reservationRowValues(r)}}

	if cached {
		rng := fmt.Sprintf("%s!A%d", s.sheetName, row)
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, values).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update row %d: %w", row, err)
		}
		return nil
	}

	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, fmt.Sprintf("%s!A:J", s.sheetName), values).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		if n, ok := parseRowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(r.ID, n)
		}
	}
	return nil
}

// ClearCache drops the row cache; the next sync rebuilds it.
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.rowCache = make(map[string]int)
	s.mu.Unlock()
}

func (s *Service) getCachedRow(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *Service) setCachedRow(id string, row int) {
	s.mu.Lock()
	s.rowCache[id] = row
	s.mu.Unlock()
}

func filterActiveReservations(reservations []models.Reservation) []models.Reservation {
	active := make([]models.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.Status.Active() {
			active = append(active, r)
		}
	}
	return active
}

func reservationRowValues(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.CourtID,
		r.Date,
		r.StartTime,
		r.EndTime,
		string(r.Status),
		r.ClientName,
		r.ClientPhone,
		r.TotalPrice,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// parseRowFromRange extracts the first row number from an A1-style range like
// "Reservas!A12:J12".
func parseRowFromRange(rng string) (int, bool) {
	row := 0
	seen := false
	for i := 0; i < len(rng); i++ {
		c := rng[i]
		if c >= '0' && c <= '9' {
			row = row*10 + int(c-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	return row, seen
}

// StartPeriodicSync refreshes the sheet on an interval until ctx ends.
func (s *Service) StartPeriodicSync(ctx context.Context, interval time.Duration, load func(context.Context) ([]models.Reservation, error)) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reservations, err := load(ctx)
				if err != nil {
					s.logger.Error().Err(err).Msg("sheet sync load failed")
					continue
				}
				if err := s.SyncReservations(ctx, reservations); err != nil {
					s.logger.Error().Err(err).Msg("sheet sync failed")
				}
			}
		}
	}()
}
