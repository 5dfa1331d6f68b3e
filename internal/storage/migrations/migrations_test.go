package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x String);

-- second
CREATE TABLE b (y UInt32)
ENGINE = MergeTree() ORDER BY y;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") {
		t.Errorf("stmt[0] = %q", stmts[0])
	}
	if !strings.HasSuffix(stmts[1], "ORDER BY y") {
		t.Errorf("stmt[1] = %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"plain", "CREATE TABLE t (ts DateTime64(3, 'UTC'));", false},
		{"escaped quote", "SELECT 'it''s';", false},
		{"semicolon in literal", "SELECT 'a;b';", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNoSemicolonInStrings(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNoSemicolonInStrings() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, tc := range []struct {
		fsys  fs.FS
		dir   string
		table string
	}{
		{PostgresFS, "postgres", "trade_records"},
		{ClickhouseFS, "clickhouse", "trading_signals"},
		{ClickhouseFS, "clickhouse", "portfolio_snapshots"},
	} {
		files, err := sqlFiles(tc.fsys, tc.dir)
		if err != nil {
			t.Fatalf("sqlFiles(%s) error = %v", tc.dir, err)
		}
		if len(files) == 0 {
			t.Fatalf("no embedded %s migrations", tc.dir)
		}

		var found bool
		for _, f := range files {
			data, err := fs.ReadFile(tc.fsys, tc.dir+"/"+f)
			if err != nil {
				t.Fatalf("read %s: %v", f, err)
			}
			if tc.dir == "clickhouse" {
				if err := validateNoSemicolonInStrings(string(data)); err != nil {
					t.Errorf("%s: %v", f, err)
				}
			}
			if strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+tc.table) {
				found = true
			}
		}
		if !found {
			t.Errorf("table %s not created by %s migrations", tc.table, tc.dir)
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/assistant")
	if err != nil || db != "assistant" {
		t.Errorf("databaseFromDSN() = %q, %v; want assistant", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}
