// Package config loads and watches the metronomed configuration file.
//
// The file may be JSON or YAML (by extension); YAML is coerced to JSON so one
// strict decoder (DisallowUnknownFields) serves both formats.
package config

import (
	"fmt"
	"strings"

	"metronome/schedule"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	History  HistoryConfig  `json:"history"`
	Watchdog WatchdogConfig `json:"watchdog"`
	Jobs     []JobConfig    `json:"jobs"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	Keep        int    `json:"keep"`
	BusyTimeout string `json:"busy_timeout"`
}

type WatchdogConfig struct {
	Enabled bool `json:"enabled"`
}

// JobConfig describes one periodic job. Exactly one of Message (log a line)
// or Command (run a process) must be set.
type JobConfig struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Once     bool     `json:"once"`
	Message  string   `json:"message,omitempty"`
	Command  []string `json:"command,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
}

// Validate rejects configs that would fail at registration time, so a hot
// reload never half-applies.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i, j := range c.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("%s: name is required", path)
		}
		if seen[name] {
			return fmt.Errorf("%s: duplicate job name %q", path, name)
		}
		seen[name] = true

		if _, err := schedule.Parse(j.Schedule); err != nil {
			return fmt.Errorf("%s (%s): %w", path, name, err)
		}
		hasMessage := strings.TrimSpace(j.Message) != ""
		hasCommand := len(j.Command) > 0
		if hasMessage == hasCommand {
			return fmt.Errorf("%s (%s): exactly one of message or command must be set", path, name)
		}
		if _, err := ParseDurationField(path+".timeout", j.Timeout); err != nil {
			return err
		}
	}
	return nil
}
