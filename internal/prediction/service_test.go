package prediction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hitoshi/epimap/internal/model"
)

func testPoints() []model.PredictionPoint {
	return []model.PredictionPoint{
		{Lat: 37.77, Lng: -122.41, Risk: 0.8, Disease: "Flu", Region: "San Francisco"},
		{Lat: 37.80, Lng: -122.27, Risk: 0.6, Disease: "Flu", Region: "Oakland"},
		{Lat: 34.05, Lng: -118.24, Risk: 0.3, Disease: "COVID-19", Region: "Los Angeles"},
		{Lat: 36.73, Lng: -119.78, Risk: 0.5, Disease: "Salmonella", Region: "Fresno"},
	}
}

func TestService_Query_FilterIsCaseInsensitive(t *testing.T) {
	s := NewService(testPoints())

	for _, disease := range []string{"flu", "FLU", "Flu"} {
		result := s.Query(disease)
		if len(result.Coordinates) != 2 {
			t.Errorf("Query(%q) coordinates = %d, want 2", disease, len(result.Coordinates))
		}
	}
}

func TestService_Query_AllAndEmptyMeanNoFilter(t *testing.T) {
	s := NewService(testPoints())

	for _, disease := range []string{"", "all", "ALL"} {
		result := s.Query(disease)
		if len(result.Coordinates) != 4 {
			t.Errorf("Query(%q) coordinates = %d, want 4", disease, len(result.Coordinates))
		}
		if result.Disease != disease && result.Disease != "all" {
			t.Errorf("Query(%q).Disease = %q", disease, result.Disease)
		}
	}
}

func TestService_Query_CoordinatesAreLngLat(t *testing.T) {
	s := NewService(testPoints())

	result := s.Query("covid-19")
	if len(result.Coordinates) != 1 {
		t.Fatalf("coordinates = %d, want 1", len(result.Coordinates))
	}
	// [lng, lat] の順
	if result.Coordinates[0][0] != -118.24 || result.Coordinates[0][1] != 34.05 {
		t.Errorf("coordinate = %v, want [-118.24, 34.05]", result.Coordinates[0])
	}
}

func TestService_Query_MetadataIgnoresFilter(t *testing.T) {
	s := NewService(testPoints())

	filtered := s.Query("flu")
	unfiltered := s.Query("all")

	if len(filtered.Diseases) != 3 || len(unfiltered.Diseases) != 3 {
		t.Errorf("Diseases = %v / %v, want 3 distinct labels in both",
			filtered.Diseases, unfiltered.Diseases)
	}
	if len(filtered.Regions) != 4 || len(unfiltered.Regions) != 4 {
		t.Errorf("Regions = %v / %v, want 4 distinct labels in both",
			filtered.Regions, unfiltered.Regions)
	}
}

func TestService_Query_AvgRisk(t *testing.T) {
	s := NewService(testPoints())

	// (0.8 + 0.6) / 2 = 0.7
	if got := s.Query("flu").AvgRisk; got != 0.7 {
		t.Errorf("AvgRisk = %v, want 0.7", got)
	}

	// 空サブセットは0
	if got := s.Query("ebola").AvgRisk; got != 0 {
		t.Errorf("AvgRisk for empty subset = %v, want 0", got)
	}
}

func TestService_Query_AvgRiskRoundsToThreeDecimals(t *testing.T) {
	s := NewService([]model.PredictionPoint{
		{Risk: 0.1, Disease: "flu"},
		{Risk: 0.2, Disease: "flu"},
		{Risk: 0.2, Disease: "flu"},
	})

	// 0.5/3 = 0.16666... -> 0.167
	if got := s.Query("flu").AvgRisk; got != 0.167 {
		t.Errorf("AvgRisk = %v, want 0.167", got)
	}
}

func TestService_EmptySnapshot(t *testing.T) {
	s := NewService(nil)

	result := s.Query("all")
	if len(result.Coordinates) != 0 {
		t.Errorf("coordinates = %d, want 0", len(result.Coordinates))
	}
	if result.AvgRisk != 0 {
		t.Errorf("AvgRisk = %v, want 0", result.AvgRisk)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.json")
	data := `[{"lat": 37.77, "lng": -122.41, "risk": 0.8, "disease": "Flu", "region": "San Francisco"}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	points, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	if points[0].Disease != "Flu" || points[0].Risk != 0.8 {
		t.Errorf("point = %+v", points[0])
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
