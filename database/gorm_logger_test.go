package database

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSQLVerb(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM code_usages":        "select",
		"  update code_usages SET state=1": "update",
		"INSERT\tINTO x":                   "insert",
		"PRAGMA foreign_keys":              "other",
	}
	for in, want := range cases {
		if got := sqlVerb(in); got != want {
			t.Errorf("sqlVerb(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestZapGormLoggerSkipsBusinessErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapGormLogger(zap.New(core)).LogMode(gormlogger.Error)
	fc := func() (string, int64) { return "SELECT 1", 0 }

	l.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), fc, gorm.ErrDuplicatedKey)
	if logs.Len() != 0 {
		t.Fatalf("business errors must not be logged, got %d entries", logs.Len())
	}

	l.Trace(context.Background(), time.Now(), fc, context.DeadlineExceeded)
	if logs.FilterMessage("sql error").Len() != 1 {
		t.Fatalf("expected one sql error entry")
	}
}
