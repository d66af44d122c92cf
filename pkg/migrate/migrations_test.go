package migrate

import "testing"

func TestMigrationsDirIsWellFormed(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}
