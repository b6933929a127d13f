// Package qdrant adapts a Qdrant collection to the dense search port.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"retrieval-orchestrator/internal/domain"
)

// DenseStore implements domain.DenseSearchPort over a Qdrant collection.
type DenseStore struct {
	client     *qdrant.Client
	collection string
}

// NewDenseStore creates a DenseStore. addr is "host:port" (gRPC port,
// default 6334 when omitted).
func NewDenseStore(addr, collection string) (*DenseStore, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant addr: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &DenseStore{client: client, collection: collection}, nil
}

// Close closes the underlying gRPC connection.
func (s *DenseStore) Close() error {
	return s.client.Close()
}

// Search runs nearest-neighbor search and returns candidates ranked 1-based
// in result order.
func (s *DenseStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search qdrant: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(points))
	for i, point := range points {
		c := domain.Candidate{
			DocID:  point.Id.GetUuid(),
			Source: domain.SourceDense,
			Rank:   i + 1,
			Score:  point.Score,
		}
		if payload := point.Payload; payload != nil {
			if docID, ok := payload["document_id"]; ok && docID.GetStringValue() != "" {
				c.DocID = docID.GetStringValue()
			}
			if content, ok := payload["content"]; ok {
				c.Text = content.GetStringValue()
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
