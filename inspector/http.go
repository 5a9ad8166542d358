package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/superx/catalog"
	"github.com/hazyhaar/superx/fetcher"
	"github.com/hazyhaar/superx/kit"
	"github.com/hazyhaar/superx/locate"
	"github.com/hazyhaar/superx/xpathgen"
)

// maxBodyBytes bounds request bodies; inline HTML documents travel in them.
const maxBodyBytes = 16 << 20

// RegisterHTTP mounts the JSON API and the live websocket on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/generate", handle(s.endpoint("generate", func(ctx context.Context, req any) (any, error) {
		return s.Generate(ctx, req.(*GenerateRequest))
	}), decodeBody[GenerateRequest]))

	r.Post("/api/query", handle(s.endpoint("query", func(ctx context.Context, req any) (any, error) {
		return s.Query(ctx, req.(*QueryRequest))
	}), decodeBody[QueryRequest]))

	r.Post("/api/annotate", s.handleAnnotate)

	r.Route("/api/locators", func(r chi.Router) {
		r.Get("/", handle(s.endpoint("list_locators", func(ctx context.Context, req any) (any, error) {
			return s.ListLocators(ctx, req.(*ListLocatorsRequest))
		}), func(r *http.Request) (*ListLocatorsRequest, error) {
			return &ListLocatorsRequest{PageURL: r.URL.Query().Get("page_url")}, nil
		}))

		r.Post("/", handleStatus(http.StatusCreated, s.endpoint("save_locator", func(ctx context.Context, req any) (any, error) {
			return s.SaveLocator(ctx, req.(*SaveLocatorRequest))
		}), decodeBody[SaveLocatorRequest]))

		r.Get("/{id}", handle(s.endpoint("get_locator", func(ctx context.Context, req any) (any, error) {
			return s.GetLocator(ctx, req.(*LocatorIDRequest))
		}), idParam))

		r.Delete("/{id}", handle(s.endpoint("delete_locator", func(ctx context.Context, req any) (any, error) {
			return s.DeleteLocator(ctx, req.(*LocatorIDRequest))
		}), idParam))

		r.Get("/{id}/checks", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			checks, err := s.store.Checks(r.Context(), chi.URLParam(r, "id"), limit)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, checks)
		})

		r.Post("/{id}/verify", handle(s.endpoint("verify_locator", func(ctx context.Context, req any) (any, error) {
			return s.VerifyLocator(ctx, req.(*VerifyLocatorRequest))
		}), func(r *http.Request) (*VerifyLocatorRequest, error) {
			req := &VerifyLocatorRequest{}
			page, err := decodeBody[PageRef](r)
			switch {
			case errors.Is(err, io.EOF):
			case err != nil:
				return nil, err
			default:
				req.Page = *page
			}
			req.ID = chi.URLParam(r, "id")
			return req, nil
		}))
	})

	r.Get("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		req, err := auditParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entries, err := s.AuditTrail(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/live", s.handleLive)
}

// auditParams reads op, status, since (RFC 3339) and limit from the query.
func auditParams(r *http.Request) (*AuditRequest, error) {
	q := r.URL.Query()
	req := &AuditRequest{Operation: q.Get("op"), Status: q.Get("status")}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("since: %w", err)
		}
		req.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
		req.Limit = n
	}
	return req, nil
}

// handleAnnotate returns the page with matches highlighted as text/html.
// The match count is reported in X-Superx-Count.
func (s *Service) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[QueryRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := withRemote(kit.WithTransport(r.Context(), "http"))
	body, resp, err := s.Annotate(ctx, req)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Superx-Count", strconv.Itoa(resp.Count))
	w.Header().Set("X-Superx-Summary", resp.Summary)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func handle[T any](ep kit.Endpoint, decode func(*http.Request) (*T, error)) http.HandlerFunc {
	return handleStatus(http.StatusOK, ep, decode)
}

func handleStatus[T any](code int, ep kit.Endpoint, decode func(*http.Request) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ctx := withRemote(kit.WithTransport(r.Context(), "http"))
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		} else if id := middleware.GetReqID(r.Context()); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		resp, err := ep(ctx, req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, code, resp)
	}
}

func decodeBody[T any](r *http.Request) (*T, error) {
	v := new(T)
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return v, nil
}

func idParam(r *http.Request) (*LocatorIDRequest, error) {
	return &LocatorIDRequest{ID: chi.URLParam(r, "id")}, nil
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, xpathgen.ErrInvalidExpression),
		errors.Is(err, locate.ErrUnknownKind),
		errors.Is(err, locate.ErrEmptyValue),
		errors.Is(err, fetcher.ErrNoSource),
		errors.Is(err, fetcher.ErrUnsafeScheme),
		errors.Is(err, fetcher.ErrPrivateAddress),
		errors.Is(err, fetcher.ErrPathTraversal),
		errors.Is(err, fetcher.ErrFilesDisabled),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, locate.ErrNoMatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetcher.ErrNoBrowser),
		errors.Is(err, ErrAuditDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, fetcher.ErrStatus):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
