package repository

import (
	"testing"
)

/* ========================================================================
 * ValidateOrderBy 测试
 * ======================================================================== */

func TestValidateOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		orderBy string
		wantErr bool
	}{
		// 合法用例
		{"empty string", "", false},
		{"simple column ASC", "create_time ASC", false},
		{"simple column DESC", "id DESC", false},
		{"column without direction", "model", false},
		{"table.column", "code_usages.model ASC", false},
		{"multiple fields", "state ASC, create_time DESC", false},
		{"lowercase direction", "id asc", false},
		{"keyword as column prefix", "updated_flag ASC", false},

		// 注入攻击
		{"SQL injection - comment", "id--", true},
		{"SQL injection - union", "id UNION SELECT", true},
		{"SQL injection - drop", "id; DROP TABLE code_usages", true},
		{"SQL injection - semicolon", "id;", true},
		{"SQL injection - sleep", "id, SLEEP(5)", true},
		{"keyword after legal prefix", "update_time, DELETE", true},
		{"invalid direction", "id RANDOM", true},
		{"too many parts", "id ASC DESC", true},
		{"special characters", "id@name", true},
		{"parenthesis", "COUNT(*)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrderBy(tt.orderBy)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrderBy(%q) error = %v, wantErr %v", tt.orderBy, err, tt.wantErr)
			}
		})
	}
}

/* ========================================================================
 * ResolveSort 测试
 * ======================================================================== */

func TestResolveSort(t *testing.T) {
	allowed := map[string]string{
		"model":      "model",
		"createTime": "create_time",
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"empty uses fallback", "", "id ASC", false},
		{"ascending", "model", "model ASC", false},
		{"descending", "-createTime", "create_time DESC", false},
		{"multiple", "model,-createTime", "model ASC, create_time DESC", false},
		{"unknown field", "password", "", true},
		{"injection attempt", "model;DROP", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSort(tt.raw, allowed, "id ASC")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveSort(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ResolveSort(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
