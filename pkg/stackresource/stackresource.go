/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stackresource implements the stack-setup custom-resource
// contract: a one-shot Create/Update/Delete lifecycle callback invoked
// by whatever infrastructure-as-code tool stands the scheduler up,
// reporting success or {FAILED, Reason} back to a caller-supplied
// response endpoint so the provisioning tool never hangs waiting on a
// resource that errored internally.
package stackresource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/instancefleet/scheduler/pkg/logging"
)

// RequestType is the lifecycle event a stack-setup custom resource is
// invoked for.
type RequestType string

const (
	RequestCreate RequestType = "Create"
	RequestUpdate RequestType = "Update"
	RequestDelete RequestType = "Delete"
)

// Status is the terminal outcome reported back to the provisioning
// tool.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Request is one invocation of the custom resource.
type Request struct {
	RequestType           RequestType
	StackID               string
	RequestID             string
	LogicalResourceID     string
	PhysicalResourceID    string
	ResponseURL           string
	ResourceProperties    map[string]any
	OldResourceProperties map[string]any
}

// Response is the envelope PUT back to Request.ResponseURL. Reason is
// mandatory whenever Status is StatusFailed and ignored by callers on
// success.
type Response struct {
	Status             Status         `json:"Status"`
	Reason             string         `json:"Reason,omitempty"`
	PhysicalResourceID string         `json:"PhysicalResourceId"`
	StackID            string         `json:"StackId"`
	RequestID          string         `json:"RequestId"`
	LogicalResourceID  string         `json:"LogicalResourceId"`
	Data               map[string]any `json:"Data,omitempty"`
}

// Handler implements the three lifecycle callbacks a stack-setup
// resource reacts to. Each returns the Data to attach to a successful
// response, or an error to report as StatusFailed.
type Handler interface {
	Create(ctx context.Context, req Request) (map[string]any, error)
	Update(ctx context.Context, req Request) (map[string]any, error)
	Delete(ctx context.Context, req Request) (map[string]any, error)
}

// Dispatch runs req against h, recovering from any panic the handler
// raises, and always produces a Response; a hung resource blocks an
// entire stack operation, so a response (even StatusFailed) must be
// produced no matter what the handler does.
func Dispatch(ctx context.Context, h Handler, req Request) (resp Response) {
	resp = Response{
		PhysicalResourceID: req.PhysicalResourceID,
		StackID:            req.StackID,
		RequestID:          req.RequestID,
		LogicalResourceID:  req.LogicalResourceID,
	}
	if resp.PhysicalResourceID == "" {
		resp.PhysicalResourceID = req.LogicalResourceID
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Errorw("stack resource handler panicked", "panic", r, "request_type", req.RequestType)
			resp.Status = StatusFailed
			resp.Reason = fmt.Sprintf("handler panicked: %v", r)
		}
	}()

	var data map[string]any
	var err error
	switch req.RequestType {
	case RequestCreate:
		data, err = h.Create(ctx, req)
	case RequestUpdate:
		data, err = h.Update(ctx, req)
	case RequestDelete:
		data, err = h.Delete(ctx, req)
	default:
		err = fmt.Errorf("stackresource: unknown request type %q", req.RequestType)
	}

	if err != nil {
		logging.FromContext(ctx).Errorw("stack resource request failed", "request_type", req.RequestType, "error", err)
		resp.Status = StatusFailed
		resp.Reason = err.Error()
		return resp
	}
	resp.Status = StatusSuccess
	resp.Data = data
	return resp
}

// SendResponse PUTs resp as JSON to req.ResponseURL, the signed S3 URL
// (or equivalent) the provisioning tool polls for completion.
func SendResponse(ctx context.Context, client *http.Client, req Request, resp Response) error {
	if req.ResponseURL == "" {
		return nil
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("stackresource: marshal response: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, req.ResponseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("stackresource: build response request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stackresource: send response: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("stackresource: response endpoint returned %d", res.StatusCode)
	}
	return nil
}
