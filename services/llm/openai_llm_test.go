// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	var gotAuth string
	var gotReq openaiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := openaiResponse{
			ID: "chatcmpl-1",
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "hello back"}, FinishReason: "stop"},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)

	content, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "hello"},
	}, GenerationParams{Temperature: FloatPtr(0.0), MaxTokens: IntPtr(64)})

	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if content != "hello back" {
		t.Errorf("content = %q, want %q", content, "hello back")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(gotReq.Messages))
	}
	if gotReq.Temperature == nil || *gotReq.Temperature != 0.0 {
		t.Error("temperature should be forwarded")
	}
}

func TestOpenAIClient_ChatMapsUnknownRoleToUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Messages[0].Role != "user" {
			t.Errorf("unknown role mapped to %q, want user", req.Messages[0].Role)
		}
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "tool", Content: "x"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
}

func TestOpenAIClient_ChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should mention status: %v", err)
	}
}

func TestOpenAIClient_ChatErrorBodyIsRedacted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`invalid key sk-abcdefghijklmnopqrstuvwxyz123456`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if strings.Contains(err.Error(), "sk-abcdefghijklmnopqrstuvwxyz123456") {
		t.Errorf("error leaked upstream secret: %v", err)
	}
	if !strings.Contains(err.Error(), "[REDACTED:openai_key]") {
		t.Errorf("error should carry redaction label: %v", err)
	}
}

func TestOpenAIClient_ChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openaiResponse{})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error when no choices returned")
	}
}

func TestOpenAIClient_ChatContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("k", "m", server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
