// CLAUDE:SUMMARY Registers the superx MCP tools: generate, query, save/list/verify/delete locator.
package inspector

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/superx/kit"
)

// RegisterMCP registers inspector tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerGenerateTool(srv)
	s.registerQueryTool(srv)
	s.registerSaveLocatorTool(srv)
	s.registerListLocatorsTool(srv)
	s.registerVerifyLocatorTool(srv)
	s.registerDeleteLocatorTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// pageProperties are the page source fields shared by page-level tools.
func pageProperties(extra map[string]any) map[string]any {
	props := map[string]any{
		"url":    map[string]any{"type": "string", "description": "Page URL to fetch"},
		"path":   map[string]any{"type": "string", "description": "Local HTML file to read instead of fetching"},
		"html":   map[string]any{"type": "string", "description": "Inline HTML document; url, when given, is kept as its address"},
		"render": map[string]any{"type": "string", "enum": []any{"http", "browser", "auto"}, "description": "Acquisition mode for URLs (default from config)"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// endpoint wraps an inspector operation with request ids, call logging and,
// when enabled, the audit trail. On an exposed service every call is
// treated as a network call.
func (s *Service) endpoint(op string, fn kit.Endpoint) kit.Endpoint {
	mws := []kit.Middleware{kit.WithRequestIDs(), kit.Logging(s.logger, op)}
	if s.exposed {
		mws = append(mws, func(next kit.Endpoint) kit.Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				return next(withRemote(ctx), req)
			}
		})
	}
	if s.audit != nil {
		mws = append(mws, s.audit.Middleware(op))
	}
	return kit.Chain(mws...)(fn)
}

// --- generate ---

func (s *Service) registerGenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_generate",
		Description: "Pick elements on a page with a CSS selector, XPath or visible text and return a full and an optimized XPath for each.",
		InputSchema: inputSchema(pageProperties(map[string]any{
			"kind":  map[string]any{"type": "string", "enum": []any{"css", "xpath", "text"}, "description": "How value selects elements (default css)"},
			"value": map[string]any{"type": "string", "description": "Selector, expression or text to look for"},
			"limit": map[string]any{"type": "integer", "description": "Max elements to return (0 = all)"},
		}), []string{"value"}),
	}

	endpoint := s.endpoint("generate", func(ctx context.Context, req any) (any, error) {
		return s.Generate(ctx, req.(*GenerateRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[GenerateRequest]())
}

// --- query ---

func (s *Service) registerQueryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_query",
		Description: "Evaluate an XPath expression on a page. Returns the match count and, for the first matches, their paths and optional previews.",
		InputSchema: inputSchema(pageProperties(map[string]any{
			"expr":    map[string]any{"type": "string", "description": "XPath 1.0 expression"},
			"preview": map[string]any{"type": "boolean", "description": "Include sanitized HTML, Markdown and text previews"},
			"limit":   map[string]any{"type": "integer", "description": "Max matches to list (capped by config)"},
		}), []string{"expr"}),
	}

	endpoint := s.endpoint("query", func(ctx context.Context, req any) (any, error) {
		return s.Query(ctx, req.(*QueryRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[QueryRequest]())
}

// --- locators ---

func (s *Service) registerSaveLocatorTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_save_locator",
		Description: "Save a locator. Either pick the element with kind/value on the page, or pass full_path and optimized_path directly.",
		InputSchema: inputSchema(pageProperties(map[string]any{
			"name":           map[string]any{"type": "string", "description": "Human label"},
			"kind":           map[string]any{"type": "string", "enum": []any{"css", "xpath", "text"}},
			"value":          map[string]any{"type": "string", "description": "Picks the first matching element"},
			"full_path":      map[string]any{"type": "string"},
			"optimized_path": map[string]any{"type": "string"},
		}), nil),
	}

	endpoint := s.endpoint("save_locator", func(ctx context.Context, req any) (any, error) {
		return s.SaveLocator(ctx, req.(*SaveLocatorRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[SaveLocatorRequest]())
}

func (s *Service) registerListLocatorsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_list_locators",
		Description: "List saved locators, optionally for one page.",
		InputSchema: inputSchema(map[string]any{
			"page_url": map[string]any{"type": "string", "description": "Filter by page URL"},
		}, nil),
	}

	endpoint := s.endpoint("list_locators", func(ctx context.Context, req any) (any, error) {
		return s.ListLocators(ctx, req.(*ListLocatorsRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[ListLocatorsRequest]())
}

func (s *Service) registerVerifyLocatorTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_verify_locator",
		Description: "Reload a saved locator's page and check its optimized path still selects exactly one element.",
		InputSchema: inputSchema(map[string]any{
			"id":   map[string]any{"type": "string", "description": "Locator ID"},
			"page": map[string]any{"type": "object", "properties": pageProperties(nil), "description": "Override the stored page"},
		}, []string{"id"}),
	}

	endpoint := s.endpoint("verify_locator", func(ctx context.Context, req any) (any, error) {
		return s.VerifyLocator(ctx, req.(*VerifyLocatorRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[VerifyLocatorRequest]())
}

func (s *Service) registerDeleteLocatorTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "superx_delete_locator",
		Description: "Delete a saved locator and its check history.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Locator ID"},
		}, []string{"id"}),
	}

	endpoint := s.endpoint("delete_locator", func(ctx context.Context, req any) (any, error) {
		return s.DeleteLocator(ctx, req.(*LocatorIDRequest))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[LocatorIDRequest]())
}
