package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mediline/telehealth-server-go/internal/model"
)

// AppointmentRepository is the read-only view of the appointment store the
// call coordinator depends on. The coordinator never mutates appointments.
type AppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
}

type appointmentRepo struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, `
		SELECT id, provider_id, doctor_id, status, start_time
		FROM appointments
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}
