package database

import (
	"context"
	"strings"
	"testing"

	"github.com/dbsmedya/treestream/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "Basic DSN with default TLS",
			cfg: config.DatabaseConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "exporter",
				Password: "secret",
				Database: "catalog",
			},
			want: "exporter:secret@tcp(localhost:3306)/catalog?parseTime=true&tls=preferred",
		},
		{
			name: "TLS disabled",
			cfg: config.DatabaseConfig{
				Host:     "db.internal",
				Port:     3307,
				User:     "u",
				Password: "p",
				Database: "d",
				TLS:      "disable",
			},
			want: "u:p@tcp(db.internal:3307)/d?parseTime=true&tls=false",
		},
		{
			name: "TLS required",
			cfg: config.DatabaseConfig{
				Host:     "db.internal",
				Port:     3306,
				User:     "u",
				Password: "p",
				Database: "d",
				TLS:      "required",
			},
			want: "u:p@tcp(db.internal:3306)/d?parseTime=true&tls=true",
		},
		{
			name: "No database name",
			cfg: config.DatabaseConfig{
				Host: "localhost",
				Port: 3306,
				User: "u",
			},
			want: "u:@tcp(localhost:3306)/?parseTime=true&tls=preferred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDSN(&tt.cfg)
			if got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSN_AlwaysParsesTime(t *testing.T) {
	// Timestamp scanning depends on parseTime; every DSN must carry it.
	for _, tls := range []string{"", "disable", "preferred", "required"} {
		cfg := config.DatabaseConfig{Host: "h", Port: 3306, User: "u", Database: "d", TLS: tls}
		if !strings.Contains(BuildDSN(&cfg), "parseTime=true") {
			t.Errorf("DSN for tls=%q is missing parseTime=true", tls)
		}
	}
}

func TestNewManager(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg)

	if m == nil {
		t.Fatal("NewManager returned nil")
	}
	if m.Catalog != nil {
		t.Error("Catalog connection should be nil before Connect")
	}
}

func TestManager_CloseAndPingWithoutConnection(t *testing.T) {
	m := NewManager(config.DefaultConfig())

	// Both are no-ops before Connect.
	if err := m.Close(); err != nil {
		t.Errorf("Close without connection failed: %v", err)
	}
	if err := m.Ping(context.Background()); err != nil {
		t.Errorf("Ping without connection failed: %v", err)
	}
}
