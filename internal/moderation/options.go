package moderation

import "time"

// Options tunes the detectors and the punishment ladder.
type Options struct {
	FloodMessages      int           `mapstructure:"flood_messages" yaml:"flood_messages"`
	FloodWindow        time.Duration `mapstructure:"flood_window" yaml:"flood_window"`
	FloodPerMessageMin time.Duration `mapstructure:"flood_per_message_min" yaml:"flood_per_message_min"`
	CapsMinLength      int           `mapstructure:"caps_min_length" yaml:"caps_min_length"`
	CapsProportion     float64       `mapstructure:"caps_proportion" yaml:"caps_proportion"`
	ActionCooldown     time.Duration `mapstructure:"action_cooldown" yaml:"action_cooldown"`
	// ZeroToleranceThreshold is exceeded, not reached, before zero tolerance applies.
	ZeroToleranceThreshold int           `mapstructure:"zero_tolerance_threshold" yaml:"zero_tolerance_threshold"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	// RetentionWindow is how long the sweep keeps message timestamps.
	RetentionWindow time.Duration `mapstructure:"retention_window" yaml:"retention_window"`
	// Punishments is the ladder indexed by points-1.
	Punishments []string `mapstructure:"punishments" yaml:"punishments"`
}

// DefaultPunishments is the escalation ladder used when none is configured.
var DefaultPunishments = []string{"warn", "mute", "hourmute", "roomban"}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		FloodMessages:          5,
		FloodWindow:            6 * time.Second,
		FloodPerMessageMin:     500 * time.Millisecond,
		CapsMinLength:          12,
		CapsProportion:         0.8,
		ActionCooldown:         3 * time.Second,
		ZeroToleranceThreshold: 4,
		SweepInterval:          30 * time.Minute,
		RetentionWindow:        5 * time.Second,
		Punishments:            append([]string(nil), DefaultPunishments...),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FloodMessages <= 0 {
		o.FloodMessages = d.FloodMessages
	}
	if o.FloodWindow <= 0 {
		o.FloodWindow = d.FloodWindow
	}
	if o.FloodPerMessageMin < 0 {
		o.FloodPerMessageMin = d.FloodPerMessageMin
	}
	if o.CapsMinLength <= 0 {
		o.CapsMinLength = d.CapsMinLength
	}
	if o.CapsProportion <= 0 || o.CapsProportion > 1 {
		o.CapsProportion = d.CapsProportion
	}
	if o.ActionCooldown < 0 {
		o.ActionCooldown = d.ActionCooldown
	}
	if o.ZeroToleranceThreshold <= 0 {
		o.ZeroToleranceThreshold = d.ZeroToleranceThreshold
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = d.SweepInterval
	}
	if o.RetentionWindow <= 0 {
		o.RetentionWindow = d.RetentionWindow
	}
	if len(o.Punishments) == 0 {
		o.Punishments = d.Punishments
	}
	return o
}
