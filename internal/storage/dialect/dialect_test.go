package dialect

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"mysql", DialectType("mysql"), "", true},
		{"unknown", DialectType("unknown"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite", "sqlite", "sqlite", false},
		{"sqlite3", "sqlite", "sqlite", false},
		{"postgres", "postgres", "postgres", false},
		{"PostgreSQL", "postgres", "postgres", false},
		{"mysql", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
			if d.DriverName() != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.wantDriver)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM recommendations WHERE provider = ? AND created_at >= ? LIMIT ?"

	tests := []struct {
		dialect DialectType
		want    string
	}{
		{SQLite, query},
		{Postgres, "SELECT * FROM recommendations WHERE provider = $1 AND created_at >= $2 LIMIT $3"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			d, _ := New(tt.dialect)
			if got := d.Rebind(query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypes(t *testing.T) {
	sqlite, _ := New(SQLite)
	pg, _ := New(Postgres)

	if sqlite.FloatType() != "REAL" || pg.FloatType() != "DOUBLE PRECISION" {
		t.Error("unexpected float types")
	}
	if sqlite.TimestampType() != "TIMESTAMP" || pg.TimestampType() != "TIMESTAMP WITH TIME ZONE" {
		t.Error("unexpected timestamp types")
	}
	if len(sqlite.PragmaStatements()) == 0 {
		t.Error("sqlite should have pragmas")
	}
	if pg.PragmaStatements() != nil {
		t.Error("postgres should not have pragmas")
	}
}
