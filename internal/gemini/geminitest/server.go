// Package geminitest runs a fake Gemini generateContent endpoint for tests.
package geminitest

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

// DefaultAudioMIME is the MIME type the real speech model reports
const DefaultAudioMIME = "audio/L16;codec=pcm;rate=24000"

// Request is what the fake server saw for one generateContent call
type Request struct {
	Model    string
	Prompt   string
	System   string
	MIMEType string
	Voice    string
	Audio    bool
	APIKey   string
}

// Server answers generateContent calls with queued replies
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	texts     []string
	audio     []byte
	audioMIME string
	failures  []int
	requests  []Request
}

// NewServer starts a fake endpoint that is closed when the test ends
func NewServer(t testing.TB) *Server {
	s := &Server{audioMIME: DefaultAudioMIME}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// QueueText appends text replies. Replies are consumed in order and the
// last one is repeated once the queue is down to one entry.
func (s *Server) QueueText(replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, replies...)
}

// SetAudio sets the PCM returned to speech requests. nil makes speech
// requests answer with text only.
func (s *Server) SetAudio(pcm []byte, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = pcm
	if mimeType != "" {
		s.audioMIME = mimeType
	}
}

// FailNext makes the next calls fail with the given HTTP statuses
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}

	req := Request{
		Model:    modelFromPath(r.URL.Path),
		Prompt:   gjson.GetBytes(body, "contents.0.parts.0.text").String(),
		System:   gjson.GetBytes(body, "systemInstruction.parts.0.text").String(),
		MIMEType: gjson.GetBytes(body, "generationConfig.responseMimeType").String(),
		Voice:    gjson.GetBytes(body, "generationConfig.speechConfig.voiceConfig.prebuiltVoiceConfig.voiceName").String(),
		APIKey:   r.Header.Get("x-goog-api-key"),
	}
	for _, m := range gjson.GetBytes(body, "generationConfig.responseModalities").Array() {
		if strings.EqualFold(m.String(), "AUDIO") {
			req.Audio = true
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		writeJSON(w, status, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    status,
				"message": http.StatusText(status),
				"status":  "UNAVAILABLE",
			},
		})
		return
	}

	var part map[string]interface{}
	switch {
	case req.Audio && s.audio != nil:
		part = map[string]interface{}{
			"inlineData": map[string]interface{}{
				"mimeType": s.audioMIME,
				"data":     base64.StdEncoding.EncodeToString(s.audio),
			},
		}
	case req.Audio:
		part = map[string]interface{}{"text": "I cannot speak right now."}
	case len(s.texts) > 0:
		part = map[string]interface{}{"text": s.texts[0]}
		if len(s.texts) > 1 {
			s.texts = s.texts[1:]
		}
	}
	s.mu.Unlock()

	if part == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": []interface{}{}})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{part},
				},
				"finishReason": "STOP",
			},
		},
	})
}

// modelFromPath extracts the model from /v1beta/models/{model}:generateContent
func modelFromPath(path string) string {
	i := strings.LastIndex(path, "/models/")
	if i < 0 {
		return ""
	}
	return strings.TrimSuffix(path[i+len("/models/"):], ":generateContent")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
