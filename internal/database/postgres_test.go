package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		expected int
	}{
		{"initial schema", "001_initial_schema.sql", 1},
		{"later migration", "012_add_index.sql", 12},
		{"no number", "readme.sql", 0},
		{"not sql", "002_notes.txt", 0},
		{"too short", "1.s", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := migrationVersion(tc.file); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}
