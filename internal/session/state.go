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

package session

import (
	"fmt"
	"slices"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// allowed lists the legal successors of each state.
var allowed = map[core.State][]core.State{
	core.StateIdle:                {core.StateMonitoring},
	core.StateMonitoring:          {core.StateDistractionDetected, core.StateWaitingResponse},
	core.StateDistractionDetected: {core.StateWaitingResponse, core.StateTimedOut},
	core.StateWaitingResponse:     {core.StateWaitingResponse, core.StateProcessingResponse, core.StateTimedOut},
	core.StateProcessingResponse:  {core.StateInteractionComplete},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to core.State) bool {
	return slices.Contains(allowed[from], to)
}

func checkTransition(from, to core.State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}
	return nil
}
