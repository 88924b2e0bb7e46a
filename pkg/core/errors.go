// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package core

import "errors"

var (
	ErrMalformedEvent        = errors.New("malformed event")
	ErrUnknownModality       = errors.New("unknown modality")
	ErrUnknownScenario       = errors.New("unknown scenario")
	ErrUnknownStrategy       = errors.New("unknown fusion strategy")
	ErrUnknownConflictPolicy = errors.New("unknown conflict policy")
	ErrUnknownState          = errors.New("unknown session state")
	ErrUnknownOutcome        = errors.New("unknown fusion outcome")
	ErrUnknownCompletion     = errors.New("unknown completion rule")
	ErrInvalidPolicy         = errors.New("invalid scenario policy")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrDuplicateScenario     = errors.New("duplicate scenario")
	ErrBusClosed             = errors.New("bus closed")
	ErrStoreClosed           = errors.New("archive store closed")
	ErrSessionNotFound       = errors.New("session not found")
	ErrManagerStopped        = errors.New("session manager stopped")
)
