package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsOpenTabViolation(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "open tab index", err: &pgconn.PgError{Code: "23505", ConstraintName: openTabIndex}, expected: true},
		{name: "wrapped", err: fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505", ConstraintName: openTabIndex}), expected: true},
		{name: "other unique index", err: &pgconn.PgError{Code: "23505", ConstraintName: "orders_public_tracking_id_key"}},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503", ConstraintName: openTabIndex}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isOpenTabViolation(tc.err))
		})
	}
}
