package contact

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const contactColumns = `id, user_id, name, surname, email_address, phone_number, birthday, additional_data, created_at, updated_at`

// List returns the user's contacts, newest first, narrowed by any non-empty
// filter fields. Filters are exact matches; the WHERE clause grows one
// positional argument per set field.
func (r *Repository) List(ctx context.Context, userID string, filter Filter) ([]Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`
	args := []any{userID}

	for _, clause := range []struct {
		column string
		value  string
	}{
		{"name", filter.Name},
		{"surname", filter.Surname},
		{"email_address", filter.EmailAddress},
	} {
		if clause.value == "" {
			continue
		}
		args = append(args, clause.value)
		query += ` AND ` + clause.column + ` = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, nil
}

// Get returns the contact with the given id if it belongs to userID.
func (r *Repository) Get(ctx context.Context, userID, id string) (*Contact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)

	c, err := scanContact(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, userID string, input ContactInput, birthday time.Time) (Contact, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Contact{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	c := Contact{
		ID:             id.String(),
		UserID:         userID,
		Name:           input.Name,
		Surname:        input.Surname,
		EmailAddress:   input.EmailAddress,
		PhoneNumber:    input.PhoneNumber,
		Birthday:       birthday,
		AdditionalData: input.AdditionalData,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, name, surname, email_address, phone_number, birthday, additional_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, c.ID, c.UserID, c.Name, c.Surname, c.EmailAddress, c.PhoneNumber, c.Birthday, c.AdditionalData, now)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	return c, nil
}

// Update rewrites every mutable field of the user's contact and returns the
// stored row. sql.ErrNoRows reports a contact that is absent or not owned by
// userID.
func (r *Repository) Update(ctx context.Context, userID, id string, input ContactInput, birthday time.Time) (Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE contacts
		SET name = $3, surname = $4, email_address = $5, phone_number = $6, birthday = $7, additional_data = $8, updated_at = $9
		WHERE user_id = $1 AND id = $2
		RETURNING `+contactColumns+`
	`, userID, id, input.Name, input.Surname, input.EmailAddress, input.PhoneNumber, birthday, input.AdditionalData, time.Now().UTC())

	c, err := scanContact(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Contact{}, sql.ErrNoRows
		}
		return Contact{}, err
	}
	return c, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Surname, &c.EmailAddress,
		&c.PhoneNumber, &c.Birthday, &c.AdditionalData, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Contact{}, sql.ErrNoRows
		}
		return Contact{}, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}
