package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beltoedu/dispatchd/internal/chat"
)

func contextServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchContext(t *testing.T) {
	t.Run("returns payload on success", func(t *testing.T) {
		srv := contextServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/chat-context", r.URL.Path)
			assert.Equal(t, "lec-42", r.URL.Query().Get("lectureId"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(Context{
				Success:      true,
				LectureID:    "lec-42",
				LectureTitle: "Biology 101",
				Attachments:  []chat.Attachment{{Name: "cells.txt", Content: "mitochondria"}},
			})
		})

		f := NewFetcher(Config{BaseURL: srv.URL}, zap.NewNop())
		c := f.FetchContext(context.Background(), "lec-42", "tok", time.Second)

		require.NotNil(t, c)
		assert.Equal(t, "Biology 101", c.LectureTitle)
		require.Len(t, c.Attachments, 1)
	})

	t.Run("nil without lecture id or token", func(t *testing.T) {
		f := NewFetcher(Config{BaseURL: "http://localhost:1"}, zap.NewNop())

		assert.Nil(t, f.FetchContext(context.Background(), "", "tok", time.Second))
		assert.Nil(t, f.FetchContext(context.Background(), "lec-42", "", time.Second))
	})

	t.Run("nil on non-OK status", func(t *testing.T) {
		srv := contextServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		f := NewFetcher(Config{BaseURL: srv.URL}, zap.NewNop())
		assert.Nil(t, f.FetchContext(context.Background(), "lec-42", "tok", time.Second))
	})

	t.Run("nil on malformed body", func(t *testing.T) {
		srv := contextServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		})

		f := NewFetcher(Config{BaseURL: srv.URL}, zap.NewNop())
		assert.Nil(t, f.FetchContext(context.Background(), "lec-42", "tok", time.Second))
	})

	t.Run("nil on unsuccessful payload", func(t *testing.T) {
		srv := contextServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Context{Success: false})
		})

		f := NewFetcher(Config{BaseURL: srv.URL}, zap.NewNop())
		assert.Nil(t, f.FetchContext(context.Background(), "lec-42", "tok", time.Second))
	})

	t.Run("nil on timeout", func(t *testing.T) {
		srv := contextServer(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode(Context{Success: true})
		})

		f := NewFetcher(Config{BaseURL: srv.URL}, zap.NewNop())
		assert.Nil(t, f.FetchContext(context.Background(), "lec-42", "tok", 20*time.Millisecond))
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	f := NewFetcher(Config{MaxDocuments: 2, MaxCharsPerDoc: 10}, zap.NewNop())

	t.Run("empty base falls back to default", func(t *testing.T) {
		got := f.BuildSystemPrompt("", nil)
		assert.Equal(t, DefaultSystemPrompt, got)
	})

	t.Run("nil context returns base unchanged", func(t *testing.T) {
		got := f.BuildSystemPrompt("You are a tutor.", nil)
		assert.Equal(t, "You are a tutor.", got)
	})

	t.Run("no attachments returns base unchanged", func(t *testing.T) {
		got := f.BuildSystemPrompt("You are a tutor.", &Context{Success: true})
		assert.Equal(t, "You are a tutor.", got)
	})

	t.Run("folds documents into prompt", func(t *testing.T) {
		c := &Context{
			Success:      true,
			LectureID:    "lec-42",
			LectureTitle: "Biology 101",
			Attachments: []chat.Attachment{
				{Name: "cells.txt", Content: "short"},
			},
		}

		got := f.BuildSystemPrompt("You are a tutor.", c)
		assert.True(t, strings.HasPrefix(got, "You are a tutor."))
		assert.Contains(t, got, `course materials from "Biology 101" (Lecture ID: lec-42)`)
		assert.Contains(t, got, "Document: cells.txt\nContent: short")
		assert.Contains(t, got, "mention which document you're referencing")
	})

	t.Run("truncates long documents", func(t *testing.T) {
		c := &Context{
			Success: true,
			Attachments: []chat.Attachment{
				{Name: "long.txt", Content: "0123456789ABCDEF"},
			},
		}

		got := f.BuildSystemPrompt("base", c)
		assert.Contains(t, got, "0123456789...[truncated]")
		assert.NotContains(t, got, "ABCDEF")
	})

	t.Run("caps document count", func(t *testing.T) {
		c := &Context{
			Success: true,
			Attachments: []chat.Attachment{
				{Name: "one.txt", Content: "a"},
				{Name: "two.txt", Content: "b"},
				{Name: "three.txt", Content: "c"},
			},
		}

		got := f.BuildSystemPrompt("base", c)
		assert.Contains(t, got, "one.txt")
		assert.Contains(t, got, "two.txt")
		assert.NotContains(t, got, "three.txt")
	})
}
