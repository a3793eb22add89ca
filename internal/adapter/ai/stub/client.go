// Package stub provides a fast, deterministic AI client for local
// development when no provider keys are configured.
package stub

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Client answers every prompt from canned fixtures. It recognizes the
// classifier and identity prompts by their schema fields so the whole
// pipeline runs end to end offline.
type Client struct{}

func New() *Client { return &Client{} }

// Name reports the stub as the primary provider so it slots into the
// manager unchanged.
func (c *Client) Name() domain.AIProvider { return domain.ProviderPrimary }

// GenerateJSON returns a schema-conformant fixture for the prompt kind.
func (c *Client) GenerateJSON(_ domain.Context, systemPrompt, _ string, _ int) (string, error) {
	// Simulate a tiny bit of processing latency to resemble real work
	time.Sleep(50 * time.Millisecond)
	var payload map[string]any
	switch {
	case strings.Contains(systemPrompt, "document_type"):
		payload = map[string]any{
			"document_type": "resume",
			"confidence":    0.98,
		}
	case strings.Contains(systemPrompt, "person_count"):
		payload = map[string]any{
			"person_count": 1,
			"primary_name": "Hong Gildong",
		}
	default:
		payload = map[string]any{
			"name":          "Hong Gildong",
			"phone":         "010-1234-5678",
			"email":         "hong.gildong@example.com",
			"address":       "Seoul, Korea",
			"last_position": "Backend Engineer",
			"last_company":  "Acme Corp",
			"exp_years":     5.5,
			"skills":        []string{"Go", "PostgreSQL", "Kafka"},
			"careers": []map[string]any{
				{
					"company":     "Acme Corp",
					"position":    "Backend Engineer",
					"start_date":  "2021-03",
					"end_date":    "",
					"description": "Built resume processing services.",
				},
				{
					"company":     "Beta Inc",
					"position":    "Software Engineer",
					"start_date":  "2018-01",
					"end_date":    "2021-02",
					"description": "Worked on billing systems.",
				},
			},
			"education": []map[string]any{
				{
					"school":     "Hankuk University",
					"degree":     "BS",
					"major":      "Computer Science",
					"start_date": "2014-03",
					"end_date":   "2018-02",
				},
			},
			"projects": []map[string]any{
				{
					"name":        "Ingestion pipeline",
					"description": "High-volume document ingestion.",
					"skills":      []string{"Go", "Redpanda"},
					"url":         "",
				},
			},
			"summary": "Backend engineer with five years of platform experience.",
		}
	}
	b, _ := json.Marshal(payload)
	return string(b), nil
}

// Embed returns a deterministic unit-scale vector derived from the text so
// repeated runs produce identical rows.
func (c *Client) Embed(_ domain.Context, text string) ([]float32, error) {
	const dims = 1536
	vec := make([]float32, 0, dims)
	var counter uint32
	for len(vec) < dims {
		var seed [4]byte
		binary.BigEndian.PutUint32(seed[:], counter)
		sum := sha256.Sum256(append([]byte(text), seed[:]...))
		for _, b := range sum {
			if len(vec) == dims {
				break
			}
			vec = append(vec, float32(b)/127.5-1)
		}
		counter++
	}
	return vec, nil
}
