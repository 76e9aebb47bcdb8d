package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/app/cart"
	"storefront/internal/app/session"
	"storefront/internal/pkg/errs"
	"storefront/internal/pkg/resp"
)

func writeEnvelope(w http.ResponseWriter, status, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp.JSONResponse{Code: code, Message: "test", Data: data})
}

func newServer(t *testing.T, routes func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestIdentityLogin(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var creds session.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			switch creds.Password {
			case "right":
				writeEnvelope(w, http.StatusOK, 0, session.Grant{
					Token:    "tok-1",
					Identity: session.Identity{ID: "u-1", Email: creds.Email, EmailVerified: true},
				})
			case "unverified":
				writeEnvelope(w, http.StatusForbidden, errs.ErrEmailNotVerified, nil)
			default:
				writeEnvelope(w, http.StatusUnauthorized, errs.ErrInvalidCredentials, nil)
			}
		})
	})
	client := NewIdentityClient(srv.Client(), srv.URL+"/")

	grant, err := client.Login(context.Background(), session.Credentials{Email: "ada@example.com", Password: "right"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", grant.Token)
	assert.Equal(t, "u-1", grant.Identity.ID)
	assert.True(t, grant.Identity.EmailVerified)

	_, err = client.Login(context.Background(), session.Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.True(t, errs.Is(err, errs.ErrInvalidCredentials))

	_, err = client.Login(context.Background(), session.Credentials{Email: "ada@example.com", Password: "unverified"})
	assert.True(t, errs.Is(err, errs.ErrEmailNotVerified))
}

func TestIdentityLoginServerFault(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
	})
	client := NewIdentityClient(srv.Client(), srv.URL)

	_, err := client.Login(context.Background(), session.Credentials{Email: "a@b.c", Password: "pw"})
	assert.True(t, errs.Is(err, errs.ErrAuthRemoteFault))
	assert.True(t, errs.IsAuthenticationFailure(err))
}

func TestIdentitySignupConflict(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Post("/api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusConflict, errs.ErrAccountExists, nil)
		})
	})
	client := NewIdentityClient(srv.Client(), srv.URL)

	_, err := client.Signup(context.Background(), session.Credentials{Email: "a@b.c", Password: "pw"})
	assert.True(t, errs.Is(err, errs.ErrAccountExists))
}

func TestIdentityCurrentSession(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Get("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get("Authorization") {
			case "Bearer live":
				writeEnvelope(w, http.StatusOK, 0, session.Identity{ID: "u-1", Email: "ada@example.com"})
			case "Bearer gone":
				writeEnvelope(w, http.StatusOK, 0, nil)
			default:
				writeEnvelope(w, http.StatusUnauthorized, errs.ErrNotAuthenticated, nil)
			}
		})
	})
	client := NewIdentityClient(srv.Client(), srv.URL)

	identity, err := client.CurrentSession(context.Background(), "live")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "u-1", identity.ID)

	identity, err = client.CurrentSession(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, identity)

	identity, err = client.CurrentSession(context.Background(), "revoked")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestIdentityLogoutToleratesUnknownToken(t *testing.T) {
	var sawToken string
	srv := newServer(t, func(r chi.Router) {
		r.Post("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			sawToken = r.Header.Get("Authorization")
			writeEnvelope(w, http.StatusUnauthorized, errs.ErrNotAuthenticated, nil)
		})
	})
	client := NewIdentityClient(srv.Client(), srv.URL)

	assert.NoError(t, client.Logout(context.Background(), "tok-1"))
	assert.Equal(t, "Bearer tok-1", sawToken)
}

func TestTransportFailureIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewCartClient(NewHTTPClient(time.Second), url)

	_, err := client.ListLines(context.Background(), "u-1")
	assert.True(t, errs.Is(err, errs.ErrRemoteUnavailable))
}

func TestMalformedEnvelopeIsRemoteUnavailable(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Get("/api/cart", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		})
	})
	client := NewCartClient(srv.Client(), srv.URL)

	_, err := client.ListLines(context.Background(), "u-1")
	assert.True(t, errs.Is(err, errs.ErrRemoteUnavailable))
}

func TestCartListAndUpsert(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Get("/api/cart", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "u-1", r.URL.Query().Get("userId"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, 0, map[string]any{"lines": []cart.Line{
				{ID: "l-1", ProductID: "p-1", Quantity: 2, StockLimit: 5, UnitPrice: decimal.RequireFromString("9.50")},
			}})
		})
		r.Put("/api/cart/items/{productID}", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Quantity int `json:"quantity"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, 0, cart.Line{ID: "l-1", ProductID: chi.URLParam(r, "productID"), Quantity: body.Quantity, StockLimit: 5})
		})
	})
	client := NewCartClient(srv.Client(), srv.URL)

	ctx := cart.WithToken(context.Background(), "tok")

	lines, err := client.ListLines(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "9.5", lines[0].UnitPrice.String())

	line, err := client.UpsertLine(ctx, "p-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, "p-1", line.ProductID)
}

func TestCartUpsertConflictCarriesCurrentLine(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Put("/api/cart/items/{productID}", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusConflict, errs.ErrInventoryConflict, map[string]any{
				"current": cart.Line{ID: "l-1", ProductID: "p-1", Quantity: 2, StockLimit: 2},
			})
		})
	})
	client := NewCartClient(srv.Client(), srv.URL)

	_, err := client.UpsertLine(context.Background(), "p-1", 3)

	assert.True(t, errs.Is(err, errs.ErrInventoryConflict))
	var conflict *cart.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "p-1", conflict.ProductID)
	require.NotNil(t, conflict.Current)
	assert.Equal(t, 2, conflict.Current.Quantity)
}

func TestCartDelete(t *testing.T) {
	srv := newServer(t, func(r chi.Router) {
		r.Delete("/api/cart/lines/{lineID}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "lineID") {
			case "l-1":
				w.WriteHeader(http.StatusNoContent)
			case "l-gone":
				writeEnvelope(w, http.StatusNotFound, errs.ErrCartLineNotFound, nil)
			default:
				writeEnvelope(w, http.StatusUnauthorized, errs.ErrNotAuthenticated, nil)
			}
		})
	})
	client := NewCartClient(srv.Client(), srv.URL)

	assert.NoError(t, client.DeleteLine(context.Background(), "l-1"))
	assert.NoError(t, client.DeleteLine(context.Background(), "l-gone"))
	assert.True(t, errs.Is(client.DeleteLine(context.Background(), "l-other"), errs.ErrNotAuthenticated))
}
