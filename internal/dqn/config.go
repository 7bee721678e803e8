package dqn

import (
	"errors"
	"fmt"
)

// Config collects the agent hyperparameters and the training-driver
// cadences. All fields are validated once, at agent construction; a
// bad value is a configuration error, not a transient condition.
type Config struct {
	// Dims are the value-network layer widths. Dims[0] is the
	// observation dimension, Dims[len(Dims)-1] the action count.
	Dims []int

	Epsilon      float64 // initial exploration probability
	EpsilonDecay float64 // fraction of Epsilon reached on the final episode
	Gamma        float64 // discount factor

	Memory        int // replay buffer capacity
	StartUpdating int // buffered transitions required before updates begin
	BatchSize     int
	LearningRate  float64

	DescentFrequency int // gradient descents per update
	UpdateFrequency  int // episodes between updates
	UseTarget        bool
	TargetFrequency  int // descents between target network syncs

	Episodes        int
	RenderFrequency int // episodes between renders (vdo_rate at the call site)
	SaveRate        int // episodes between checkpoints; 0 disables
	Summary         bool
	AnimationPath   string
	CheckpointDir   string

	Seed int64
}

func (c Config) validate() error {
	if len(c.Dims) < 2 {
		return errors.New("dims must list at least input and output widths")
	}
	for _, d := range c.Dims {
		if d < 1 {
			return fmt.Errorf("invalid layer width %d", d)
		}
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon %v outside [0, 1]", c.Epsilon)
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon decay %v outside (0, 1]", c.EpsilonDecay)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma %v outside [0, 1]", c.Gamma)
	}
	if c.Memory < 1 {
		return fmt.Errorf("memory %d must be at least 1", c.Memory)
	}
	if c.BatchSize < 1 || c.BatchSize > c.Memory {
		return fmt.Errorf("batch size %d outside [1, %d]", c.BatchSize, c.Memory)
	}
	if c.StartUpdating < c.BatchSize {
		return fmt.Errorf("start updating %d below batch size %d", c.StartUpdating, c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate %v must be positive", c.LearningRate)
	}
	if c.DescentFrequency < 1 {
		return fmt.Errorf("descent frequency %d must be at least 1", c.DescentFrequency)
	}
	if c.UpdateFrequency < 1 {
		return fmt.Errorf("update frequency %d must be at least 1", c.UpdateFrequency)
	}
	if c.UseTarget && c.TargetFrequency < 1 {
		return fmt.Errorf("target frequency %d must be at least 1", c.TargetFrequency)
	}
	if c.Episodes < 1 {
		return fmt.Errorf("episodes %d must be at least 1", c.Episodes)
	}
	if c.RenderFrequency < 1 {
		return fmt.Errorf("render frequency %d must be at least 1", c.RenderFrequency)
	}
	if c.SaveRate < 0 {
		return fmt.Errorf("save rate %d must not be negative", c.SaveRate)
	}
	return nil
}
