package db

import (
	"testing"

	"github.com/shinyyama/community-backend/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"host and port", config.Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "3306", DBName: "app"},
			"u:p@tcp(db:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"},
		{"explicit tcp", config.Config{DBUser: "u", DBPassword: "p", DBHost: "tcp(10.0.0.1:3307)", DBName: "app"},
			"u:p@tcp(10.0.0.1:3307)/app?charset=utf8mb4&parseTime=True&loc=Local"},
		{"socket path", config.Config{DBUser: "u", DBPassword: "p", DBHost: "/tmp/mysql.sock", DBName: "app"},
			"u:p@unix(/tmp/mysql.sock)/app?charset=utf8mb4&parseTime=True&loc=Local"},
		{"cloud sql", config.Config{DBUser: "u", DBPassword: "p", DBHost: "ignored", InstanceConnectionName: "proj:region:inst", DBName: "app"},
			"u:p@unix(/cloudsql/proj:region:inst)/app?charset=utf8mb4&parseTime=True&loc=Local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDSN(&tt.cfg)
			if got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestConnect_MemoryDriverHasNoDialect(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: config.DriverMemory})
	if err == nil {
		t.Fatal("expected error for memory driver")
	}
}
