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

package plugins

import (
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// IngestResult counts the events of one inbound payload.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Ingest decodes a payload holding one event or an array of events and
// publishes each of them. Only a payload that is not JSON at all returns an
// error. Elements that cannot be decoded and events the bus rejects are
// counted as rejected; the rest still go out.
func Ingest(pub core.Publisher, data []byte, producer string, received time.Time) (IngestResult, error) {
	var res IngestResult
	batch, err := core.DecodeEvents(data, producer, received)
	if err != nil {
		return res, err
	}
	for _, derr := range batch.Invalid {
		res.Rejected++
		if r, ok := pub.(core.Rejecter); ok {
			r.Reject(derr)
		}
	}
	for _, evt := range batch.Events {
		if err := pub.Publish(evt); err != nil {
			res.Rejected++
			continue
		}
		res.Accepted++
	}
	return res, nil
}
