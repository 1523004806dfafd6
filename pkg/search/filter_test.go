package search

import (
	"testing"
)

func TestComparisonFilter_Equals(t *testing.T) {
	filter := Eq("category", "tech")

	tests := []struct {
		name     string
		metadata map[string]interface{}
		want     bool
	}{
		{
			name:     "match",
			metadata: map[string]interface{}{"category": "tech"},
			want:     true,
		},
		{
			name:     "no match",
			metadata: map[string]interface{}{"category": "sports"},
			want:     false,
		},
		{
			name:     "field missing",
			metadata: map[string]interface{}{"type": "article"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.Match(tt.metadata); got != tt.want {
				t.Errorf("Eq().Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComparisonFilter_NotEquals(t *testing.T) {
	filter := Ne("status", "deleted")

	metadata1 := map[string]interface{}{"status": "active"}
	metadata2 := map[string]interface{}{"status": "deleted"}

	if !filter.Match(metadata1) {
		t.Error("Ne() should match 'active'")
	}
	if filter.Match(metadata2) {
		t.Error("Ne() should not match 'deleted'")
	}
}

func TestComparisonFilter_Numeric(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		value    int
		wantPass bool
	}{
		{"gt-pass", Gt("score", 50), 60, true},
		{"gt-fail", Gt("score", 50), 40, false},
		{"lt-pass", Lt("score", 50), 40, true},
		{"lt-fail", Lt("score", 50), 60, false},
		{"gte-pass-greater", Gte("score", 50), 60, true},
		{"gte-pass-equal", Gte("score", 50), 50, true},
		{"gte-fail", Gte("score", 50), 40, false},
		{"lte-pass-less", Lte("score", 50), 40, true},
		{"lte-pass-equal", Lte("score", 50), 50, true},
		{"lte-fail", Lte("score", 50), 60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := map[string]interface{}{"score": tt.value}
			if got := tt.filter.Match(metadata); got != tt.wantPass {
				t.Errorf("%s: Match() = %v, want %v", tt.name, got, tt.wantPass)
			}
		})
	}
}

func TestRangeFilter(t *testing.T) {
	filter := Range("year", 2020, 2024)

	tests := []struct {
		name string
		year int
		want bool
	}{
		{"within range", 2022, true},
		{"lower bound", 2020, true},
		{"upper bound", 2024, true},
		{"below range", 2019, false},
		{"above range", 2025, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := map[string]interface{}{"year": tt.year}
			if got := filter.Match(metadata); got != tt.want {
				t.Errorf("Range().Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeFilter_OpenEnded(t *testing.T) {
	minOnly := Range("year", 2020, nil)
	if !minOnly.Match(map[string]interface{}{"year": 2099}) {
		t.Error("Range() with nil max should accept any value above min")
	}
	if minOnly.Match(map[string]interface{}{"year": 2019}) {
		t.Error("Range() with nil max should still enforce min")
	}

	maxOnly := Range("year", nil, 2020)
	if !maxOnly.Match(map[string]interface{}{"year": 1900}) {
		t.Error("Range() with nil min should accept any value below max")
	}
}

func TestExistsFilter(t *testing.T) {
	existsFilter := Exists("optional_field")
	notExistsFilter := NotExists("optional_field")

	metadata1 := map[string]interface{}{"optional_field": "value"}
	metadata2 := map[string]interface{}{"other_field": "value"}

	if !existsFilter.Match(metadata1) {
		t.Error("Exists() should match when field exists")
	}
	if existsFilter.Match(metadata2) {
		t.Error("Exists() should not match when field missing")
	}

	if notExistsFilter.Match(metadata1) {
		t.Error("NotExists() should not match when field exists")
	}
	if !notExistsFilter.Match(metadata2) {
		t.Error("NotExists() should match when field missing")
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
	}{
		{"int", 42, 42.0},
		{"int64", int64(42), 42.0},
		{"float32", float32(42.5), 42.5},
		{"float64", 42.5, 42.5},
		{"uint", uint(42), 42.0},
		{"unknown", "string", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toFloat64(tt.value); got != tt.want {
				t.Errorf("toFloat64(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFilterBuilder(t *testing.T) {
	f, err := NewFilterBuilder().Equals("category", "tech").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !f.Match(map[string]interface{}{"category": "tech"}) {
		t.Error("built filter should match")
	}

	if _, err := NewFilterBuilder().Build(); err == nil {
		t.Error("Build() with no conditions should error")
	}
}

func BenchmarkComparisonFilter(b *testing.B) {
	filter := Eq("category", "tech")
	metadata := map[string]interface{}{"category": "tech"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Match(metadata)
	}
}

func BenchmarkRangeFilter(b *testing.B) {
	filter := Range("year", 2020, 2024)
	metadata := map[string]interface{}{"year": 2022}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Match(metadata)
	}
}
