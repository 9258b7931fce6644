/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/context"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultAPIEndpoint is the default API endpoint used when none is configured
	DefaultAPIEndpoint = "http://localhost:3001/api"
	// DefaultSyncInterval is how often the watch command replays the queue and pulls
	DefaultSyncInterval = "5m"
	// defaultLibraryDirName is the name of the library directory under the data directory
	defaultLibraryDirName = "library"
)

// Config holds readsync configuration
type Config struct {
	APIEndpoint  string `yaml:"apiEndpoint"`
	LibraryDir   string `yaml:"libraryDir"`
	AutoSync     bool   `yaml:"autoSync"`
	SyncInterval string `yaml:"syncInterval"`
}

// Default returns the configuration written on first run
func Default(paths context.Paths, apiEndpoint string) Config {
	if apiEndpoint == "" {
		apiEndpoint = DefaultAPIEndpoint
	}

	return Config{
		APIEndpoint:  apiEndpoint,
		LibraryDir:   filepath.Join(paths.Data, consts.AppDirName, defaultLibraryDirName),
		AutoSync:     true,
		SyncInterval: DefaultSyncInterval,
	}
}

// Interval parses the sync interval, falling back to the default if it is empty
func (c Config) Interval() (time.Duration, error) {
	s := c.SyncInterval
	if s == "" {
		s = DefaultSyncInterval
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing sync interval %q", s)
	}
	if d < time.Second {
		return 0, errors.Errorf("sync interval %s is shorter than a second", d)
	}

	return d, nil
}

// GetPath returns the path to the readsync config file
func GetPath(paths context.Paths) string {
	return filepath.Join(paths.Config, consts.AppDirName, consts.ConfigFilename)
}

// Read reads the config file
func Read(paths context.Paths) (Config, error) {
	var ret Config

	configPath := GetPath(paths)
	b, err := os.ReadFile(configPath)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	err = yaml.Unmarshal(b, &ret)
	if err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the config file
func Write(paths context.Paths, cf Config) error {
	path := GetPath(paths)

	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}
