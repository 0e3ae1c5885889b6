package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	documentsURI      = "blockdoc://documents"
	documentURIPrefix = "blockdoc://documents/"
)

func (s *Server) registerResources() {
	// ── blockdoc://documents ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		documentsURI,
		"All Documents",
		mcp.WithResourceDescription("Summaries of every stored document, most recently updated first"),
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentsResource)

	// ── blockdoc://documents/{documentId} ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			documentURIPrefix+"{documentId}",
			"Document",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleDocumentResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	items, err := s.docs.ListDocuments()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      documentsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := documentIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract documentId from URI: %s", uri)
	}

	doc, err := s.docs.LoadDocument(id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// documentIDFromURI extracts the id from "blockdoc://documents/{id}".
func documentIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, documentURIPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
