package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"chatstore/internal/shared"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: "23505", Message: "duplicate key"},
			want: shared.KindConflict,
		},
		{
			name: "foreign key violation",
			err:  &pgconn.PgError{Code: "23503", Message: "fk violated"},
			want: shared.KindConflict,
		},
		{
			name: "not null violation",
			err:  &pgconn.PgError{Code: "23502", Message: "null value"},
			want: shared.KindConflict,
		},
		{
			name: "wrapped driver error",
			err:  fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"}),
			want: shared.KindConflict,
		},
		{
			name: "no rows",
			err:  fmt.Errorf("user 7: %w", pgx.ErrNoRows),
			want: shared.KindNotFound,
		},
		{
			name: "canceled passes through",
			err:  context.Canceled,
			want: shared.KindCanceled,
		},
		{
			name: "other driver error",
			err:  &pgconn.PgError{Code: "42601", Message: "syntax error"},
			want: shared.KindStatement,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: shared.KindStatement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.KindOf(classify(tt.err)))
		})
	}

	assert.NoError(t, classify(nil))
}
