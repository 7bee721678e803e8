// Command evaluate loads a training checkpoint, runs deterministic
// evaluation episodes, renders the resulting charts, and serves them
// together with summary stats over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/logrusorgru/aurora"

	"rocket-circularization/internal/dqn"
	"rocket-circularization/internal/rocket"
	"rocket-circularization/internal/viz"
)

const (
	defaultPort     = "9001"
	defaultEpisodes = 5
)

func main() {
	checkpointDir := getenv("CHECKPOINT_DIR", "checkpoints")
	chartsDir := getenv("CHARTS_DIR", "charts")
	episodes := getenvInt("EVAL_EPISODES", defaultEpisodes)
	port := getenv("PORT", defaultPort)
	seed := getenvInt64("SEED", time.Now().UnixNano())

	env := rocket.NewEnv(rand.New(rand.NewSource(seed)))

	agent, err := dqn.NewAgent(dqn.Config{
		Dims: []int{env.StateDims(), 32, 32, env.ActionDims()},

		Epsilon:      1.0,
		EpsilonDecay: 0.01,
		Gamma:        1.0,

		Memory:        100000,
		StartUpdating: 1000,
		BatchSize:     64,
		LearningRate:  0.001,

		DescentFrequency: 20,
		UpdateFrequency:  1,
		UseTarget:        true,
		TargetFrequency:  10,

		Episodes:        1,
		RenderFrequency: 1,
		Summary:         true,
		AnimationPath:   filepath.Join(chartsDir, "orbit_summary.html"),

		Seed: seed,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := agent.Load(checkpointDir); err != nil {
		log.Fatal(err)
	}

	var totalReward float64
	var totalIters int
	rewards := make([]float64, 0, episodes)
	for episode := 0; episode < episodes; episode++ {
		iters, reward, _ := agent.Simulate(env, episode == 0, true)
		totalReward += reward
		totalIters += iters
		rewards = append(rewards, reward)
		fmt.Printf("%s iters=%d reward=%.3e\n",
			aurora.Green(fmt.Sprintf("eval %d/%d", episode, episodes)), iters, reward)
	}
	// Evaluation rollouts were recorded in the replay buffer; drop them
	// so they cannot leak into a later checkpoint.
	agent.ClearExperience()

	if err := viz.SaveOrbitPNG(filepath.Join(chartsDir, "orbit.png"), env.Trajectory()); err != nil {
		log.Fatal(err)
	}
	if err := viz.WriteTrainingSummary(filepath.Join(chartsDir, "evaluation.html"), rewards, nil); err != nil {
		log.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		payload := map[string]any{
			"episodes":    episodes,
			"mean_reward": totalReward / float64(episodes),
			"mean_iters":  float64(totalIters) / float64(episodes),
			"checkpoint":  checkpointDir,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	})
	mux.Handle("/", http.FileServer(http.Dir(chartsDir)))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("evaluation charts on :%s (checkpoint=%s episodes=%d)", port, checkpointDir, episodes)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
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
