package mysql

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := BuildDSN(Config{
		Host:     "db.internal",
		Port:     3307,
		User:     "modelcode",
		Password: "p@ss:word/",
		DBName:   "modelcode",
	})
	if err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}

	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if parsed.Passwd != "p@ss:word/" {
		t.Fatalf("password not preserved: %q", parsed.Passwd)
	}
	if parsed.Addr != "db.internal:3307" {
		t.Fatalf("unexpected addr: %q", parsed.Addr)
	}
	if !parsed.ParseTime {
		t.Fatalf("parseTime must be enabled")
	}
}

func TestBuildDSNInvalidLocation(t *testing.T) {
	if _, err := BuildDSN(Config{Host: "h", Loc: "Mars/Olympus"}); err == nil {
		t.Fatalf("expected error for unknown location")
	}
}
