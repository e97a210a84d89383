package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/GetStream/careerchat/api/validator"
	"github.com/GetStream/careerchat/apperror"
	"github.com/GetStream/careerchat/chat"
	"github.com/GetStream/careerchat/ratelimit"
)

// UserHeader carries the ID of the authenticated caller, set by the
// upstream identity layer.
const UserHeader = "X-User-ID"

// InvalidateHeader lists the cache keys made stale by the request.
const InvalidateHeader = "X-Invalidate"

// API provides the REST endpoints for the application.
type API struct {
	Logger  *slog.Logger
	Chat    *chat.Service
	Limiter ratelimit.Limiter
	Val     *validator.Validator
	// TrustProxy identifies clients by the first X-Forwarded-For hop
	// instead of the connection's remote address.
	TrustProxy bool

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /sessions", a.listSessions)
	mux.HandleFunc("POST /sessions", a.createSession)
	mux.HandleFunc("GET /sessions/{sessionID}", a.getSession)
	mux.HandleFunc("PATCH /sessions/{sessionID}", a.renameSession)
	mux.HandleFunc("DELETE /sessions/{sessionID}", a.deleteSession)
	mux.HandleFunc("GET /sessions/{sessionID}/context", a.getContext)
	mux.HandleFunc("POST /sessions/{sessionID}/read", a.markSessionRead)

	mux.HandleFunc("GET /sessions/{sessionID}/messages", a.listMessages)
	mux.HandleFunc("POST /sessions/{sessionID}/messages", a.sendMessage)
	mux.HandleFunc("GET /sessions/{sessionID}/messages/count", a.countMessages)
	mux.HandleFunc("GET /sessions/{sessionID}/messages/search", a.searchMessages)
	mux.HandleFunc("GET /sessions/{sessionID}/messages/{messageID}", a.getMessage)
	mux.HandleFunc("PATCH /sessions/{sessionID}/messages/{messageID}", a.editMessage)
	mux.HandleFunc("DELETE /sessions/{sessionID}/messages/{messageID}", a.deleteMessage)
	mux.HandleFunc("POST /sessions/{sessionID}/messages/{messageID}/read", a.markRead)
	mux.HandleFunc("POST /sessions/{sessionID}/messages/{messageID}/regenerate", a.regenerate)
	mux.HandleFunc("GET /sessions/{sessionID}/messages/{messageID}/history", a.messageHistory)
	mux.HandleFunc("POST /sessions/{sessionID}/messages/{messageID}/bookmark", a.toggleBookmark)
	mux.HandleFunc("POST /sessions/{sessionID}/messages/{messageID}/reactions", a.addReaction)
	mux.HandleFunc("DELETE /sessions/{sessionID}/messages/{messageID}/reactions/{emoji}", a.removeReaction)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)

	if err := a.admit(r); err != nil {
		a.respondError(w, err)
		return
	}
	if userID(r) == "" {
		a.respond(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorBody{
			Code:    codeUnauthorized,
			Message: "Missing " + UserHeader + " header",
		}})
		return
	}

	ctx, keys := chat.WithCollector(r.Context())
	a.mux.ServeHTTP(&invalidatingWriter{ResponseWriter: w, keys: keys}, r.WithContext(ctx))
}

// admit runs the rate limiter. A limiter that fails for any other reason
// than a rejection lets the request through.
func (a *API) admit(r *http.Request) error {
	if a.Limiter == nil {
		return nil
	}
	err := a.Limiter.Check(r.Context(), a.clientIP(r))
	if err == nil {
		return nil
	}
	var rl *apperror.RateLimitedError
	if errors.As(err, &rl) {
		return rl
	}
	a.Logger.Error("Rate limiter unavailable", "error", err.Error())
	return nil
}

func (a *API) clientIP(r *http.Request) string {
	if a.TrustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondError writes err as an error response. Internal failures are
// logged with their cause and reach the client as a generic message.
func (a *API) respondError(w http.ResponseWriter, err error) {
	e := apperror.As(err)
	body := ErrorBody{Code: e.Code(), Message: e.Public()}

	var rl *apperror.RateLimitedError
	if errors.As(e, &rl) {
		body.RetryAfter = rl.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
	}

	status := statusOf(e.Code())
	if status >= http.StatusInternalServerError {
		a.Logger.Error("Error", "code", e.Code(), "error", err.Error())
	} else {
		a.Logger.Info("Request rejected", "code", e.Code(), "error", err.Error())
	}
	a.respond(w, status, ErrorResponse{Error: body})
}

func statusOf(code apperror.Code) int {
	switch code {
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeBadRequest:
		return http.StatusBadRequest
	case apperror.CodeConflict:
		return http.StatusConflict
	case apperror.CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes the JSON request body into s and validates it. An
// empty body decodes as the zero value.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, s any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(s); err != nil && !errors.Is(err, io.EOF) {
		a.respondError(w, apperror.Validation("body", "must be valid JSON"))
		return false
	}
	return a.validateBody(w, s)
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	if err := a.Val.Check(s); err != nil {
		a.respondError(w, err)
		return false
	}
	return true
}

// queryInt returns the integer query parameter name, or 0 when absent.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.Validation(name, "must be an integer")
	}
	return n, nil
}

// invalidatingWriter sets the InvalidateHeader from the request's collected
// keys right before the status line goes out.
type invalidatingWriter struct {
	http.ResponseWriter
	keys  *chat.Collector
	wrote bool
}

func (w *invalidatingWriter) WriteHeader(status int) {
	if !w.wrote {
		w.wrote = true
		if keys := w.keys.Keys(); len(keys) > 0 {
			s := make([]string, len(keys))
			for i, k := range keys {
				s[i] = string(k)
			}
			w.Header().Set(InvalidateHeader, strings.Join(s, ","))
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *invalidatingWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
