package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPoolStats_Fields(t *testing.T) {
	stats := &PoolStats{
		TotalConns:      10,
		IdleConns:       5,
		AcquiredConns:   5,
		MaxConns:        20,
		AcquireCount:    100,
		AcquireDuration: "1.5s",
		Healthy:         true,
	}
	if stats.TotalConns != 10 || stats.IdleConns != 5 || stats.MaxConns != 20 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.Healthy {
		t.Error("expected Healthy to be true")
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Error("expected ErrNoRows to be detected")
	}
	wrapped := errors.Join(errors.New("get encounter"), pgx.ErrNoRows)
	if !IsNoRows(wrapped) {
		t.Error("expected wrapped ErrNoRows to be detected")
	}
	if IsNoRows(errors.New("boom")) {
		t.Error("plain error is not ErrNoRows")
	}

	unique := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(unique) || IsForeignKeyViolation(unique) {
		t.Error("expected 23505 to be a unique violation only")
	}
	fk := &pgconn.PgError{Code: "23503"}
	if !IsForeignKeyViolation(fk) || IsUniqueViolation(fk) {
		t.Error("expected 23503 to be a foreign key violation only")
	}
}
