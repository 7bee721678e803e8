package dqn

import (
	"fmt"

	"github.com/logrusorgru/aurora"
)

// Train runs the outer training loop: per episode it anneals epsilon,
// simulates one rollout, updates the network on the configured cadence,
// and checkpoints on the configured cadence. There is no convergence
// check or early stopping; the loop runs exactly cfg.Episodes episodes.
func (a *Agent) Train(env Environment) (History, error) {
	var hist History

	for episode := 0; episode < a.cfg.Episodes; episode++ {
		a.epsilon = a.Epsilon(episode, a.cfg.Episodes)

		render := episode%a.cfg.RenderFrequency == 0
		iters, totalReward, _ := a.Simulate(env, render, false)

		tag := aurora.Green(fmt.Sprintf("episode %d/%d", episode, a.cfg.Episodes))
		if a.replay.Len() >= a.cfg.StartUpdating && episode%a.cfg.UpdateFrequency == 0 {
			loss, err := a.updateWeights(a.cfg.Gamma)
			if err != nil {
				return hist, fmt.Errorf("episode %d: %w", episode, err)
			}
			hist.Losses = append(hist.Losses, loss)
			fmt.Printf("%s eps=%.4f iters=%d reward=%.3e loss=%.3e\n",
				tag, a.epsilon, iters, totalReward, loss)
		} else {
			fmt.Printf("%s eps=%.4f iters=%d reward=%.3e\n",
				tag, a.epsilon, iters, totalReward)
		}

		hist.Iters = append(hist.Iters, iters)
		hist.Rewards = append(hist.Rewards, totalReward)

		if a.cfg.SaveRate > 0 && a.cfg.CheckpointDir != "" && episode%a.cfg.SaveRate == 0 {
			if err := a.Save(a.cfg.CheckpointDir); err != nil {
				return hist, fmt.Errorf("episode %d: %w", episode, err)
			}
		}
	}

	return hist, nil
}
