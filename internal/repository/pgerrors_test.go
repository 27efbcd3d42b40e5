package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: ErrNotFound},
		{name: "malformed uuid", err: &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}, want: ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", ConstraintName: "products_vendor_keyword_key"}, want: ErrConflict},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: ErrContention},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ErrContention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err), tt.want)
		})
	}

	plain := errors.New("connection reset")
	assert.Same(t, plain, translate(plain))
	assert.NoError(t, translate(nil))
}
