package main

import (
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rocket-circularization/internal/dqn"
	"rocket-circularization/internal/rocket"
	"rocket-circularization/internal/viz"
)

const (
	defaultEpisodes      = 1000
	defaultCheckpointDir = "checkpoints"
	defaultChartsDir     = "charts"
)

func main() {
	episodes := getenvInt("EPISODES", defaultEpisodes)
	gamma := getenvFloat("GAMMA", 1.0)
	vdoRate := getenvInt("VDO_RATE", 100)
	updateFrequency := getenvInt("UPDATE_FREQ", 1)
	saveRate := getenvInt("SAVE_RATE", 100)
	seed := getenvInt64("SEED", time.Now().UnixNano())
	checkpointDir := getenv("CHECKPOINT_DIR", defaultCheckpointDir)
	chartsDir := getenv("CHARTS_DIR", defaultChartsDir)

	env := rocket.NewEnv(rand.New(rand.NewSource(seed)))

	cfg := dqn.Config{
		Dims: []int{env.StateDims(), 32, 32, env.ActionDims()},

		Epsilon:      1.0,
		EpsilonDecay: 0.01,
		Gamma:        gamma,

		Memory:        100000,
		StartUpdating: 1000,
		BatchSize:     64,
		LearningRate:  0.001,

		DescentFrequency: 20,
		UpdateFrequency:  updateFrequency,
		UseTarget:        true,
		TargetFrequency:  10,

		Episodes:        episodes,
		RenderFrequency: vdoRate,
		SaveRate:        saveRate,
		Summary:         true,
		AnimationPath:   filepath.Join(chartsDir, "orbit_summary.html"),
		CheckpointDir:   checkpointDir,

		Seed: seed,
	}

	agent, err := dqn.NewAgent(cfg)
	if err != nil {
		log.Fatal(err)
	}

	hist, err := agent.Train(env)
	if err != nil {
		log.Fatal(err)
	}

	if err := agent.Save(checkpointDir); err != nil {
		log.Fatal(err)
	}
	summaryPath := filepath.Join(chartsDir, "training.html")
	if err := viz.WriteTrainingSummary(summaryPath, hist.Rewards, hist.Losses); err != nil {
		log.Fatal(err)
	}
	log.Printf("trained %d episodes; checkpoint in %s, summary at %s",
		episodes, checkpointDir, summaryPath)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
