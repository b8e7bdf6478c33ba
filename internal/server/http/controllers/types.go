package controllers

import (
	"github.com/MrMoose/rescue/internal/namespace"
	"github.com/MrMoose/rescue/internal/workqueue"
)

// maxBodyBytes caps request bodies, bulk candidate inserts included.
const maxBodyBytes = 8 << 20

// Request bodies are decoded into structpb.Struct and responses are built as
// field maps, so both sides go through protojson.

func namespaceFields(m namespace.Meta) map[string]any {
	return map[string]any{
		"name":        m.Name,
		"createdAtMs": m.CreatedAtMs,
		"leaseTtlMs":  m.LeaseTTLMs,
		"scanBatch":   m.ScanBatch,
	}
}

func statsFields(s workqueue.Stats) map[string]any {
	return map[string]any{
		"candidates": s.Candidates,
		"pending":    s.Pending,
		"leased":     s.Leased,
		"succeeded":  s.Succeeded,
		"failed":     s.Failed,
	}
}
