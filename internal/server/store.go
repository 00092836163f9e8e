package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
)

func (a *App) loadPetProfile(ctx context.Context, petID string) (map[string]any, error) {
	var (
		id, name string
		species, breed, gender, color, notes *string
		age                                  *int
		weight                               *float64
	)
	err := a.db.QueryRow(
		ctx,
		`SELECT id, name, species, breed, age, gender, color, weight, notes
		 FROM "Pet" WHERE id = $1`,
		petID,
	).Scan(&id, &name, &species, &breed, &age, &gender, &color, &weight, &notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apiError{Status: http.StatusNotFound, Detail: "Pet not found"}
	}
	if err != nil {
		return nil, err
	}

	profile := map[string]any{
		"id":   id,
		"name": name,
	}
	if species != nil {
		profile["species"] = *species
	}
	if breed != nil {
		profile["breed"] = *breed
	}
	if age != nil {
		profile["age"] = *age
	}
	if gender != nil {
		profile["gender"] = *gender
	}
	if color != nil {
		profile["color"] = *color
	}
	if weight != nil {
		profile["weight"] = *weight
	}
	if notes != nil {
		profile["notes"] = *notes
	}
	return profile, nil
}

func (a *App) listPetIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.Query(ctx, `SELECT id FROM "Pet" ORDER BY "createdAt" ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a *App) loadRecentReminders(ctx context.Context, petID string, limit int) ([]map[string]any, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT id, title, description, "dueDate", recurring, status
		 FROM "Reminder"
		 WHERE "petId" = $1
		 ORDER BY "dueDate" DESC
		 LIMIT $2`,
		petID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]map[string]any, 0, limit)
	for rows.Next() {
		var id, title string
		var description, status *string
		var dueDate *time.Time
		var recurring bool
		if err := rows.Scan(&id, &title, &description, &dueDate, &recurring, &status); err != nil {
			return nil, err
		}
		item := map[string]any{
			"id":        id,
			"title":     title,
			"recurring": recurring,
		}
		if description != nil {
			item["description"] = *description
		}
		if dueDate != nil {
			item["dueDate"] = dueDate.UTC().Format(time.RFC3339)
		}
		if status != nil {
			item["status"] = *status
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (a *App) loadRecentLogs(ctx context.Context, petID string, limit int) ([]map[string]any, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT id, action, "createdAt"
		 FROM "ActivityLog"
		 WHERE "petId" = $1
		 ORDER BY "createdAt" DESC
		 LIMIT $2`,
		petID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]map[string]any, 0, limit)
	for rows.Next() {
		var id, action string
		var createdAt time.Time
		if err := rows.Scan(&id, &action, &createdAt); err != nil {
			return nil, err
		}
		items = append(items, map[string]any{
			"id":        id,
			"action":    action,
			"createdAt": createdAt.UTC().Format(time.RFC3339),
		})
	}
	return items, rows.Err()
}

func (a *App) loadNewestRecord(ctx context.Context, petID string) (map[string]any, error) {
	var id, title string
	var recordType, description, extractedText *string
	var date *time.Time
	err := a.db.QueryRow(
		ctx,
		`SELECT id, title, type, date, description, "extractedText"
		 FROM "MedicalRecord"
		 WHERE "petId" = $1
		 ORDER BY date DESC
		 LIMIT 1`,
		petID,
	).Scan(&id, &title, &recordType, &date, &description, &extractedText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item := map[string]any{
		"id":    id,
		"title": title,
	}
	if recordType != nil {
		item["type"] = *recordType
	}
	if date != nil {
		item["date"] = date.UTC().Format(time.RFC3339)
	}
	if description != nil {
		item["description"] = *description
	}
	if extractedText != nil {
		item["extractedText"] = *extractedText
	}
	return item, nil
}

func (a *App) savePetCareGuide(ctx context.Context, petID, guideJSON string) error {
	tag, err := a.db.Exec(
		ctx,
		`UPDATE "Pet" SET "careGuideJson" = $2::jsonb, "updatedAt" = NOW() WHERE id = $1`,
		petID,
		guideJSON,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &apiError{Status: http.StatusNotFound, Detail: "Pet not found"}
	}
	return nil
}

func (a *App) savePetHealthScore(ctx context.Context, petID string, score int) error {
	tag, err := a.db.Exec(
		ctx,
		`UPDATE "Pet" SET "healthScore" = $2, "updatedAt" = NOW() WHERE id = $1`,
		petID,
		score,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &apiError{Status: http.StatusNotFound, Detail: "Pet not found"}
	}
	return nil
}

// deleteUserData is best-effort cleanup after the identity provider has
// removed the account; the provider remains the source of truth.
func (a *App) deleteUserData(ctx context.Context, userID string) error {
	statements := []string{
		`DELETE FROM "Reminder" WHERE "petId" IN (SELECT id FROM "Pet" WHERE "userId" = $1)`,
		`DELETE FROM "MedicalRecord" WHERE "petId" IN (SELECT id FROM "Pet" WHERE "userId" = $1)`,
		`DELETE FROM "ActivityLog" WHERE "petId" IN (SELECT id FROM "Pet" WHERE "userId" = $1)`,
		`DELETE FROM "Pet" WHERE "userId" = $1`,
		`DELETE FROM "User" WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := a.db.Exec(ctx, stmt, userID); err != nil {
			return err
		}
	}
	return nil
}
