package viz

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleTrajectory() Trajectory {
	traj := Trajectory{RMin: 0.1, RMax: 2, RTarget: 1}
	traj.Record([]float64{1, 0, 0, 1}, [2]float64{})
	traj.Record([]float64{0.99, 0.01, -0.1, 1}, [2]float64{0.1, 0})
	traj.Record([]float64{0.98, 0.02, -0.1, 1}, [2]float64{0, 0.1})
	return traj
}

func TestWriteOrbitSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "orbit_summary.html")
	if err := WriteOrbitSummary(path, sampleTrajectory()); err != nil {
		t.Fatalf("write orbit summary: %v", err)
	}
	assertNonEmptyFile(t, path)
}

func TestWriteTrainingSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "training.html")
	rewards := []float64{1, 2, 3}
	losses := []float64{0.5, 0.25}
	if err := WriteTrainingSummary(path, rewards, losses); err != nil {
		t.Fatalf("write training summary: %v", err)
	}
	assertNonEmptyFile(t, path)
}

func TestSaveOrbitPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "orbit.png")
	if err := SaveOrbitPNG(path, sampleTrajectory()); err != nil {
		t.Fatalf("save orbit png: %v", err)
	}
	assertNonEmptyFile(t, path)
}

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("%s is empty", path)
	}
}
