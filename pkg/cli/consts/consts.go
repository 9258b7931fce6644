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

// Package consts provides definitions of constants
package consts

var (
	// AppDirName is the name of the directory containing readsync files
	AppDirName = "readsync"
	// DBFileName is a filename for the readsync SQLite database
	DBFileName = "readsync.db"
	// ConfigFilename is the name of the config file
	ConfigFilename = "readsyncrc"
	// EnvFilename is the name of the optional dotenv file read from the config directory
	EnvFilename = ".env"

	// SystemSettings is the key for the persisted sync settings record in the system table
	SystemSettings = "settings"
	// SystemDeviceID is the key for the identifier of this device
	SystemDeviceID = "device_id"
)

const (
	// QueueMaxRetries is the number of failed attempts after which a queued operation is dropped
	QueueMaxRetries = 3
	// PushDebounceSeconds is the minimum interval between two background pushes
	PushDebounceSeconds = 30
	// PushDelaySeconds is how long a deferred push waits for further changes to the same book
	PushDelaySeconds = 10
	// LoginLeewaySeconds is how close to expiry an access token is considered expired
	LoginLeewaySeconds = 60
	// DefaultHighlightColor is used for highlights without a stored color
	DefaultHighlightColor = "#FFFF00"
)
