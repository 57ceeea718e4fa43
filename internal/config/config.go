// Copyright 2025 OpenPad Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const DefaultShutdownTimeout = "30s"

type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	FeeRecipient    string `yaml:"feeRecipient"    split_words:"true"`
	NativeSymbol    string `yaml:"nativeSymbol"    split_words:"true"`
	ClaimWindow     string `yaml:"claimWindow"     split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	HouseFeeBps     uint64 `yaml:"houseFeeBps"     split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	NativeDecimals  uint8  `yaml:"nativeDecimals"  split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
}

var globalConfig = &Config{
	DatabasePath:    ".openpad",
	BindAddr:        "0.0.0.0",
	NativeSymbol:    "NATIVE",
	NativeDecimals:  18,
	MetricsPort:     12798,
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.openpad/openpad.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".openpad", "openpad.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		// Try to check for /etc/openpad/openpad.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/openpad/openpad.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("openpad", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if globalConfig.ClaimWindow != "" {
		if _, err := time.ParseDuration(globalConfig.ClaimWindow); err != nil {
			return nil, fmt.Errorf("invalid claimWindow: %w", err)
		}
	}
	if _, err := time.ParseDuration(globalConfig.ShutdownTimeout); err != nil {
		return nil, fmt.Errorf("invalid shutdownTimeout: %w", err)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
