package repository

import (
	"context"
	"os"
	"testing"

	"github.com/opencompliance/complycal/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "complycal-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetObligation", func(t *testing.T) {
		rule := &domain.ObligationRule{
			ID:       "gst",
			Name:     "GST Returns",
			Category: domain.CategoryTax,
			Applicability: domain.Applicability{
				Condition:  "Turnover above registration threshold",
				Thresholds: map[string]float64{"services": 2000000, "goods": 4000000},
			},
			Frequency: "monthly",
			Forms: []domain.FormSpec{
				{
					Name:        "GSTR-3B",
					Description: "Monthly summary return",
					Deadline:    domain.DeadlineRule{Kind: domain.DeadlineMonthly, Day: 20},
					Penalty:     "Rs. 50 per day of delay",
				},
			},
			Resources: []domain.Resource{{Title: "GST Portal", URL: "https://www.gst.gov.in"}},
			Builtin:   true,
			Enabled:   true,
		}

		if err := repo.SaveObligation(ctx, rule); err != nil {
			t.Fatalf("SaveObligation failed: %v", err)
		}

		retrieved, err := repo.GetObligation(ctx, "gst")
		if err != nil {
			t.Fatalf("GetObligation failed: %v", err)
		}

		if retrieved.Name != rule.Name {
			t.Errorf("expected Name %s, got %s", rule.Name, retrieved.Name)
		}
		if retrieved.Category != domain.CategoryTax {
			t.Errorf("expected Category Tax, got %s", retrieved.Category)
		}
		if len(retrieved.Forms) != 1 || retrieved.Forms[0].Deadline.Day != 20 {
			t.Errorf("forms not round-tripped: %+v", retrieved.Forms)
		}
		if retrieved.Applicability.Thresholds["services"] != 2000000 {
			t.Errorf("thresholds not round-tripped: %+v", retrieved.Applicability)
		}
		if !retrieved.Builtin || !retrieved.Enabled {
			t.Error("builtin/enabled flags not round-tripped")
		}
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		rule := &domain.ObligationRule{
			ID:       "gst",
			Name:     "GST Returns (amended)",
			Category: domain.CategoryTax,
			Forms: []domain.FormSpec{{
				Name:     "GSTR-3B",
				Deadline: domain.DeadlineRule{Kind: domain.DeadlineMonthly, Day: 22},
			}},
			Enabled: true,
		}
		if err := repo.SaveObligation(ctx, rule); err != nil {
			t.Fatalf("SaveObligation failed: %v", err)
		}

		retrieved, err := repo.GetObligation(ctx, "gst")
		if err != nil {
			t.Fatalf("GetObligation failed: %v", err)
		}
		if retrieved.Name != "GST Returns (amended)" {
			t.Errorf("expected amended name, got %s", retrieved.Name)
		}
		if retrieved.Forms[0].Deadline.Day != 22 {
			t.Errorf("expected updated deadline day 22, got %d", retrieved.Forms[0].Deadline.Day)
		}
	})

	t.Run("ContributionRoundTrip", func(t *testing.T) {
		rule := &domain.ObligationRule{
			ID:       "epf",
			Name:     "EPF",
			Category: domain.CategoryLabor,
			Forms: []domain.FormSpec{{
				Name:     "ECR",
				Deadline: domain.DeadlineRule{Kind: domain.DeadlineMonthly, Day: 15},
			}},
			Contribution: &domain.ContributionRate{Employer: "12%", Employee: "12%"},
			Enabled:      true,
		}
		if err := repo.SaveObligation(ctx, rule); err != nil {
			t.Fatalf("SaveObligation failed: %v", err)
		}

		retrieved, err := repo.GetObligation(ctx, "epf")
		if err != nil {
			t.Fatalf("GetObligation failed: %v", err)
		}
		if retrieved.Contribution == nil || retrieved.Contribution.Employee != "12%" {
			t.Errorf("contribution not round-tripped: %+v", retrieved.Contribution)
		}
	})

	t.Run("ListObligations", func(t *testing.T) {
		rules, err := repo.ListObligations(ctx)
		if err != nil {
			t.Fatalf("ListObligations failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 obligations, got %d", len(rules))
		}
		// Ordered by ID
		if rules[0].ID != "epf" || rules[1].ID != "gst" {
			t.Errorf("unexpected order: %s, %s", rules[0].ID, rules[1].ID)
		}
	})

	t.Run("SoftDelete", func(t *testing.T) {
		if err := repo.DeleteObligation(ctx, "epf"); err != nil {
			t.Fatalf("DeleteObligation failed: %v", err)
		}

		rules, err := repo.ListObligations(ctx)
		if err != nil {
			t.Fatalf("ListObligations failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 enabled obligation after delete, got %d", len(rules))
		}

		// Row still exists, just disabled
		retrieved, err := repo.GetObligation(ctx, "epf")
		if err != nil {
			t.Fatalf("GetObligation after delete failed: %v", err)
		}
		if retrieved.Enabled {
			t.Error("deleted obligation still enabled")
		}

		if err := repo.DeleteObligation(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("Metadata", func(t *testing.T) {
		_, err := repo.GetMetadata(ctx)
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound before save, got: %v", err)
		}

		meta := &domain.CatalogMetadata{
			Version:       "1.0",
			Source:        "test",
			ApplicableFor: "Indian SMEs",
		}
		if err := repo.SaveMetadata(ctx, meta); err != nil {
			t.Fatalf("SaveMetadata failed: %v", err)
		}

		retrieved, err := repo.GetMetadata(ctx)
		if err != nil {
			t.Fatalf("GetMetadata failed: %v", err)
		}
		if retrieved.Version != "1.0" || retrieved.Source != "test" {
			t.Errorf("metadata not round-tripped: %+v", retrieved)
		}

		// Singleton row: saving again overwrites
		meta.Version = "1.1"
		if err := repo.SaveMetadata(ctx, meta); err != nil {
			t.Fatalf("SaveMetadata failed: %v", err)
		}
		retrieved, err = repo.GetMetadata(ctx)
		if err != nil {
			t.Fatalf("GetMetadata failed: %v", err)
		}
		if retrieved.Version != "1.1" {
			t.Errorf("expected version 1.1, got %s", retrieved.Version)
		}
	})

	t.Run("RequiresID", func(t *testing.T) {
		if err := repo.SaveObligation(ctx, &domain.ObligationRule{}); err == nil {
			t.Error("expected error for empty obligation id")
		}
		if _, err := repo.GetObligation(ctx, ""); err == nil {
			t.Error("expected error for empty id")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetObligation(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
