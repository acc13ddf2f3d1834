package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/aisgo/ais-modelcode/database"
)

type uniqueThing struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestNewDBMemoryTranslatesDuplicateKey(t *testing.T) {
	db, err := NewDB(Params{Config: Config{}})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if err := db.AutoMigrate(&uniqueThing{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := db.Create(&uniqueThing{ID: 1, Code: "SLU"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err = db.Create(&uniqueThing{ID: 2, Code: "SLU"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
	if !database.IsDuplicateKey(err) {
		t.Fatalf("IsDuplicateKey must recognise translated error")
	}
}

func TestNewDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelcode.db")
	db, err := NewDB(Params{Config: Config{Path: path}})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("select: %v", err)
	}
	if one != 1 {
		t.Fatalf("unexpected result: %d", one)
	}
}
