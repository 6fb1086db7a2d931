package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/simp-lee/gocontacts/internal/domain"
)

// maxResponseBytes caps how much of an upstream response body is read.
// Contacts carry inline avatars, so a page of them can be large.
const maxResponseBytes = 64 << 20

// contactRepository implements domain.ContactRepository against the external
// contact service's REST API.
type contactRepository struct {
	client  *http.Client
	baseURL *url.URL
	logger  *slog.Logger
}

// NewContactRepository creates a ContactRepository that talks to the contact
// service at baseURL using client.
func NewContactRepository(client *http.Client, baseURL string, logger *slog.Logger) (domain.ContactRepository, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("contact repository: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("contact repository: base url must be http or https, got %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &contactRepository{client: client, baseURL: u, logger: logger}, nil
}

// List fetches one page of contacts, optionally filtered by q.Query.
func (r *contactRepository) List(ctx context.Context, q domain.ListQuery) (*domain.ContactPage, error) {
	params := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))
	if q.Query != "" {
		params.Set("q", q.Query)
	}

	var out domain.ContactPage
	if err := r.do(ctx, "list", http.MethodGet, "/contacts", params, nil, &out); err != nil {
		return nil, err
	}
	if out.Contacts == nil {
		out.Contacts = []domain.Contact{}
	}
	return &out, nil
}

// GetByID fetches a single contact.
func (r *contactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	var out domain.Contact
	if err := r.do(ctx, "get", http.MethodGet, contactPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new contact and returns the created record.
func (r *contactRepository) Create(ctx context.Context, in domain.ContactInput) (*domain.Contact, error) {
	var out domain.Contact
	if err := r.do(ctx, "create", http.MethodPost, "/contacts", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the fields of an existing contact.
func (r *contactRepository) Update(ctx context.Context, id string, in domain.ContactInput) (*domain.Contact, error) {
	var out domain.Contact
	if err := r.do(ctx, "update", http.MethodPut, contactPath(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a contact.
func (r *contactRepository) Delete(ctx context.Context, id string) error {
	return r.do(ctx, "delete", http.MethodDelete, contactPath(id), nil, nil, nil)
}

// Ping checks that the contact service answers a first-page list request.
func (r *contactRepository) Ping(ctx context.Context) error {
	params := url.Values{"page": []string{"1"}}
	return r.do(ctx, "ping", http.MethodGet, "/contacts", params, nil, nil)
}

func contactPath(id string) string {
	return "/contacts/" + url.PathEscape(id)
}

// do performs one request/response cycle. There are no retries: every
// failure is returned to the caller exactly once.
func (r *contactRepository) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	u := r.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.NewAppError(domain.CodeInternal, "failed to encode request", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.WarnContext(ctx, "contact service unreachable",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("latency", time.Since(start)),
			slog.Any("error", err),
		)
		return domain.NewAppError(domain.CodeUnavailable, domain.ConnectivityMessage, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewAppError(domain.CodeUnavailable, domain.ConnectivityMessage, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := mapStatus(op, resp.StatusCode, data)
		r.logger.WarnContext(ctx, "contact service rejected request",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", time.Since(start)),
			slog.String("message", appErr.Message),
		)
		return appErr
	}

	r.logger.DebugContext(ctx, "contact service call",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewAppError(domain.CodeInternal, "Unexpected response from the contact service", err)
	}
	return nil
}

// errorBody is the error payload of the contact service.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var opFallback = map[string]string{
	"list":   "Failed to load contacts",
	"get":    "Failed to load contact",
	"create": "Failed to create contact",
	"update": "Failed to update contact",
	"delete": "Failed to delete contact",
	"ping":   "Contact service health check failed",
}

// mapStatus converts a non-2xx response into an AppError. The server-supplied
// message is used verbatim when present.
func mapStatus(op string, status int, data []byte) *domain.AppError {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	msg := strings.TrimSpace(eb.Error)
	if msg == "" {
		msg = strings.TrimSpace(eb.Message)
	}

	cause := errors.New(http.StatusText(status))
	switch status {
	case http.StatusNotFound:
		if msg == "" {
			msg = "Contact not found"
		}
		return domain.NewAppError(domain.CodeNotFound, msg, cause)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = opFallback[op]
		}
		return domain.NewAppError(domain.CodeValidation, msg, cause)
	case http.StatusConflict:
		if msg == "" {
			msg = "Contact already exists"
		}
		return domain.NewAppError(domain.CodeAlreadyExists, msg, cause)
	default:
		if msg == "" {
			msg = fmt.Sprintf("%s (status %d)", opFallback[op], status)
		}
		return domain.NewAppError(domain.CodeRejected, msg, cause)
	}
}
