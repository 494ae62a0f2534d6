// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenStream issues POST /chat/stream and returns the response body for
// incremental reading. The caller must close it. A non-2xx status is
// returned as *TransportError with the body already drained and closed.
//
// Streaming requests bypass the rate limiter and are never retried.
func (c *Client) OpenStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	req.Stream = true

	httpReq, requestID, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	entry := c.log.WithFields(logrus.Fields{"path": "/chat/stream", "request_id": requestID, "chat_id": req.ChatID})

	start := time.Now()
	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		entry.WithError(err).Debug("stream request failed")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	entry.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)}).Debug("stream opened")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := readResponse(resp.Body)
		return nil, &TransportError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
