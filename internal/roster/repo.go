package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a student id has no matching row.
var ErrNotFound = errors.New("student not found")

const studentColumns = `id, short_id, notion_page_id, name, class_days, class_time, class_times,
	arrival_time, departure_time, arrival_location, departure_location,
	arrival_locations, departure_locations,
	mother_phone, father_phone, student_phone, other_phone,
	is_active, arrival_status, departure_status,
	registration_date, created_at, updated_at`

// Repository persists the roster in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var (
		s                                  Student
		classDays, classTimes              []byte
		arrivalLocations, departureLocBlob []byte
		isActive                           sql.NullBool
	)
	err := row.Scan(&s.ID, &s.ShortID, &s.NotionPageID, &s.Name, &classDays, &s.ClassTime, &classTimes,
		&s.ArrivalTime, &s.DepartureTime, &s.ArrivalLocation, &s.DepartureLocation,
		&arrivalLocations, &departureLocBlob,
		&s.MotherPhone, &s.FatherPhone, &s.StudentPhone, &s.OtherPhone,
		&isActive, &s.ArrivalStatus, &s.DepartureStatus,
		&s.RegistrationDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Student{}, err
	}
	if isActive.Valid {
		s.IsActive = &isActive.Bool
	}
	if err := json.Unmarshal(classDays, &s.ClassDays); err != nil {
		return Student{}, fmt.Errorf("decode class_days: %w", err)
	}
	if err := json.Unmarshal(classTimes, &s.ClassTimes); err != nil {
		return Student{}, fmt.Errorf("decode class_times: %w", err)
	}
	if err := json.Unmarshal(arrivalLocations, &s.ArrivalLocations); err != nil {
		return Student{}, fmt.Errorf("decode arrival_locations: %w", err)
	}
	if err := json.Unmarshal(departureLocBlob, &s.DepartureLocations); err != nil {
		return Student{}, fmt.Errorf("decode departure_locations: %w", err)
	}
	s.Normalize()
	return s, nil
}

// ListStudents returns the full roster, active and withdrawn, by name.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	return s, err
}

// GetStudentByNotionPageID resolves a legacy Notion page id to its row.
func (r *Repository) GetStudentByNotionPageID(ctx context.Context, pageID string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE notion_page_id = $1`, pageID)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	return s, err
}

// InsertStudent writes a new student, assigning a canonical id when missing.
func (r *Repository) InsertStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Normalize()

	classDays := mustJSON(emptySlice(s.ClassDays))
	classTimes := mustJSON(emptyMap(s.ClassTimes))
	arrivalLocs := mustJSON(emptyMap(s.ArrivalLocations))
	departureLocs := mustJSON(emptyMap(s.DepartureLocations))

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, s.ID, s.ShortID, s.NotionPageID, s.Name, classDays, s.ClassTime, classTimes,
		s.ArrivalTime, s.DepartureTime, s.ArrivalLocation, s.DepartureLocation,
		arrivalLocs, departureLocs,
		s.MotherPhone, s.FatherPhone, s.StudentPhone, s.OtherPhone,
		nullableBool(s.IsActive), s.ArrivalStatus, s.DepartureStatus,
		s.RegistrationDate, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// UpdateStudent applies a partial merge and stamps updated_at.
func (r *Repository) UpdateStudent(ctx context.Context, id string, p StudentPatch) (Student, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.ShortID != nil {
		add("short_id", *p.ShortID)
	}
	if p.NotionPageID != nil {
		add("notion_page_id", *p.NotionPageID)
	}
	if p.ClassDays != nil {
		add("class_days", mustJSON(emptySlice(*p.ClassDays)))
	}
	if p.ClassTime != nil {
		add("class_time", NormalizeClassTime(*p.ClassTime))
	}
	if p.ClassTimes != nil {
		normalized := map[string]string{}
		for day, t := range *p.ClassTimes {
			normalized[day] = NormalizeClassTime(t)
		}
		add("class_times", mustJSON(normalized))
	}
	if p.ArrivalTime != nil {
		add("arrival_time", *p.ArrivalTime)
	}
	if p.DepartureTime != nil {
		add("departure_time", *p.DepartureTime)
	}
	if p.ArrivalLocation != nil {
		add("arrival_location", *p.ArrivalLocation)
	}
	if p.DepartureLocation != nil {
		add("departure_location", *p.DepartureLocation)
	}
	if p.ArrivalLocations != nil {
		add("arrival_locations", mustJSON(emptyMap(*p.ArrivalLocations)))
	}
	if p.DepartureLocations != nil {
		add("departure_locations", mustJSON(emptyMap(*p.DepartureLocations)))
	}
	if p.MotherPhone != nil {
		add("mother_phone", *p.MotherPhone)
	}
	if p.FatherPhone != nil {
		add("father_phone", *p.FatherPhone)
	}
	if p.StudentPhone != nil {
		add("student_phone", *p.StudentPhone)
	}
	if p.OtherPhone != nil {
		add("other_phone", *p.OtherPhone)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.RegistrationDate != nil {
		add("registration_date", *p.RegistrationDate)
	}

	args = append(args, id)
	query := "UPDATE students SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Student{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Student{}, ErrNotFound
	}
	return r.GetStudent(ctx, id)
}

// DeleteStudent removes the row for good; withdrawal is an update instead.
func (r *Repository) DeleteStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus writes one completion flag.
func (r *Repository) SetStatus(ctx context.Context, id string, kind StatusKind, value bool) error {
	column := "arrival_status"
	if kind == KindDeparture {
		column = "departure_status"
	}
	res, err := r.db.ExecContext(ctx, `UPDATE students SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClassSlots returns the class-info map, empty when never seeded.
func (r *Repository) ListClassSlots(ctx context.Context) (map[string]ClassSlot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot, start_time, end_time, locations FROM class_slots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]ClassSlot{}
	for rows.Next() {
		var (
			slot, start, end string
			locations        []byte
		)
		if err := rows.Scan(&slot, &start, &end, &locations); err != nil {
			return nil, err
		}
		cs := ClassSlot{StartTime: start, EndTime: end}
		if err := json.Unmarshal(locations, &cs.Locations); err != nil {
			return nil, fmt.Errorf("decode locations for %s: %w", slot, err)
		}
		res[slot] = cs
	}
	return res, rows.Err()
}

// ReplaceClassSlots overwrites the class-info map wholesale.
func (r *Repository) ReplaceClassSlots(ctx context.Context, slots map[string]ClassSlot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM class_slots`); err != nil {
		return err
	}
	for slot, cs := range slots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO class_slots (slot, start_time, end_time, locations)
			VALUES ($1, $2, $3, $4)
		`, slot, cs.StartTime, cs.EndTime, mustJSON(cs.Locations)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
