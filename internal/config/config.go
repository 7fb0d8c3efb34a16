/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of OTRVHUB project.
 *
 * OTRVHUB is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/antst/otrvhub/internal/logger"

	"github.com/pborman/getopt/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	defaultMQTTURL      = "tcp://127.0.0.1:1883"
	defaultControlTopic = "otrvhub/control"
	defaultClientPrefix = "otrvhub-"
	defaultDBFile       = "~/.otrvhub.db"
	defaultConfigFile   = "config.yaml"
)

type Config struct {
	LogLevel   zapcore.Level    `yaml:"log_level"`
	DBFile     string           `yaml:"db_file"`
	MQTTConfig *MQTTConfig      `yaml:"mqtt"`
	Boiler     *BoilerConfig    `yaml:"boiler"`
	Targets    *TargetsConfig   `yaml:"targets"`
	Setback    *SetbackConfig   `yaml:"setback"`
	Valve      *ValveConfig     `yaml:"valve"`
	Stats      *StatsConfig     `yaml:"stats"`
	Occupancy  *OccupancyConfig `yaml:"occupancy"`
	Schedule   *ScheduleConfig  `yaml:"schedule"`
	Scheduler  *SchedulerConfig `yaml:"scheduler"`
	Sensors    *SensorsConfig   `yaml:"sensors"`
	Metrics    *MetricsConfig   `yaml:"metrics"`
}

type MQTTConfig struct {
	URL            string `yaml:"url"`
	ControlTopic   string `yaml:"control_topic"`
	ClientPrefix   string `yaml:"client_prefix"`
	EmbeddedBroker string `yaml:"embedded_broker,omitempty"`
}

func NewMQTTConfig() *MQTTConfig {
	cfg := &MQTTConfig{}
	cfg.FillDefaults()
	return cfg
}

func (c *MQTTConfig) FillDefaults() {
	if c.URL == "" {
		c.URL = defaultMQTTURL
	}
	if c.ControlTopic == "" {
		c.ControlTopic = defaultControlTopic
	}
	if c.ClientPrefix == "" {
		c.ClientPrefix = defaultClientPrefix
	}
}

type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

func defConfig() *Config {
	return &Config{
		DBFile:     defaultDBFile,
		LogLevel:   zapcore.InfoLevel,
		MQTTConfig: NewMQTTConfig(),
		Boiler:     NewBoilerConfig(),
		Targets:    NewTargetsConfig(),
		Setback:    NewSetbackConfig(),
		Valve:      NewValveConfig(),
		Stats:      NewStatsConfig(),
		Occupancy:  NewOccupancyConfig(),
		Schedule:   NewScheduleConfig(),
		Scheduler:  NewSchedulerConfig(),
		Sensors:    &SensorsConfig{},
		Metrics:    &MetricsConfig{},
	}
}

// Default returns the built-in configuration with every section filled in.
func Default() *Config {
	cfg := defConfig()
	cfg.FillDefaults()
	return cfg
}

func prettyPrint(cfg *Config) {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		logger.L().Error("Failed to marshal config for pretty print", err)
		return
	}
	logger.L().Debugf("--- Config ---\n%s\n\n", string(d))
}

func (cfg *Config) FillDefaults() {
	if cfg.MQTTConfig == nil {
		cfg.MQTTConfig = &MQTTConfig{}
	}
	cfg.MQTTConfig.FillDefaults()
	if cfg.Boiler == nil {
		cfg.Boiler = &BoilerConfig{}
	}
	cfg.Boiler.FillDefaults(cfg.MQTTConfig.ControlTopic)
	if cfg.Targets == nil {
		cfg.Targets = &TargetsConfig{}
	}
	cfg.Targets.FillDefaults()
	if cfg.Setback == nil {
		cfg.Setback = &SetbackConfig{}
	}
	cfg.Setback.FillDefaults()
	if cfg.Valve == nil {
		cfg.Valve = &ValveConfig{}
	}
	cfg.Valve.FillDefaults()
	if cfg.Stats == nil {
		cfg.Stats = &StatsConfig{}
	}
	cfg.Stats.FillDefaults(cfg.MQTTConfig.ControlTopic)
	if cfg.Occupancy == nil {
		cfg.Occupancy = &OccupancyConfig{}
	}
	cfg.Occupancy.FillDefaults()
	if cfg.Schedule == nil {
		cfg.Schedule = &ScheduleConfig{}
	}
	cfg.Schedule.FillDefaults()
	if cfg.Scheduler == nil {
		cfg.Scheduler = &SchedulerConfig{}
	}
	cfg.Scheduler.FillDefaults()
	if cfg.Sensors == nil {
		cfg.Sensors = &SensorsConfig{}
	}
	cfg.Sensors.FillDefaults()
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
}

func Get() *Config {
	logLevel := getopt.StringLong("log-level", 'l', "", "log levels: debug, info, warn, error, dpanic, panic, fatal")
	configFile := getopt.StringLong("config", 'c', defaultConfigFile, "config file pathname")
	dbFile := getopt.StringLong("db", 'd', "", "DB file pathname")

	getopt.Parse()

	cfg, err := Load(*configFile, *dbFile, *logLevel)
	if err != nil {
		log.Panicf("GetConfig: %v", err)
	}
	return cfg
}

// Load reads configFile over the defaults and applies the command line overrides.
func Load(configFile, dbFile, logLevel string) (*Config, error) {
	cfg := defConfig()
	if err := readFile(cfg, configFile); err != nil {
		return nil, err
	}
	logger.L().Infof("Using config file `%v`", configFile)

	if dbFile != "" {
		cfg.DBFile = dbFile
	}
	logger.L().Infof("Using DB file `%v`", cfg.DBFile)

	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logLevel != "" {
		if err := cfg.LogLevel.Set(logLevel); err != nil {
			logger.L().Errorf("Wrong log level `%v`: %v", logLevel, err)
		}
	}
	logger.SetLogLevel(cfg.LogLevel)

	prettyPrint(cfg)

	return cfg, nil
}

// Validate checks cross-field constraints FillDefaults cannot repair.
func (cfg *Config) Validate() error {
	t := cfg.Targets
	if t.MinC > t.MaxC {
		return fmt.Errorf("targets: min_c %d above max_c %d", t.MinC, t.MaxC)
	}
	if t.FrostC < t.MinC || t.FrostC > t.MaxC {
		return fmt.Errorf("targets: frost_c %d outside [%d,%d]", t.FrostC, t.MinC, t.MaxC)
	}
	if t.WarmC < t.FrostC || t.WarmC > t.MaxC {
		return fmt.Errorf("targets: warm_c %d outside [%d,%d]", t.WarmC, t.FrostC, t.MaxC)
	}
	if f := cfg.Scheduler.DeadlineFraction; f <= 0 || f > 1 {
		return fmt.Errorf("scheduler: deadline_fraction %v outside (0,1]", f)
	}
	for i, e := range cfg.Schedule.Entries {
		if _, err := ParseMinuteOfDay(e.On); err != nil {
			return fmt.Errorf("schedule entry %d: %w", i, err)
		}
		if e.Off != "" {
			if _, err := ParseMinuteOfDay(e.Off); err != nil {
				return fmt.Errorf("schedule entry %d: %w", i, err)
			}
		}
	}
	return nil
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func readFile(cfg *Config, configFileName string) error {
	if !fileExists(configFileName) {
		return nil
	}

	f, err := os.Open(configFileName)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	return nil
}
