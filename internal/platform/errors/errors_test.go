package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type upstream struct{}

func (upstream) Error() string        { return "ahrefs 502" }
func (upstream) ErrorCode() ErrorCode { return ErrorCodeProvider }

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want int
	}{
		{NotFoundf("analysis %s not found", "a1"), http.StatusNotFound},
		{InvalidArgf("bad"), http.StatusUnprocessableEntity},
		{Conflictf("running"), http.StatusConflict},
		{JSONErrf("bad json"), http.StatusBadRequest},
		{Newf(ErrorCodeValidation, "name is required"), http.StatusBadRequest},
		{Unavailablef("shutting down"), http.StatusServiceUnavailable},
		{Timeoutf("slow"), http.StatusGatewayTimeout},
		{fmt.Errorf("wrapped: %w", upstream{}), http.StatusBadGateway},
		{PanicErrf("boom"), http.StatusInternalServerError},
		{stderrs.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWrapChain(t *testing.T) {
	t.Parallel()
	cause := stderrs.New("conn reset")
	err := fmt.Errorf("persist: %w", Wrapf(cause, ErrorCodeDB, "upsert %d rows", 3))

	if !IsCode(err, ErrorCodeDB) || IsCode(nil, ErrorCodeUnknown) {
		t.Fatalf("IsCode mismatch for %v", err)
	}
	if Root(err) != cause {
		t.Fatalf("Root = %v", Root(err))
	}
	if err.Error() != "persist: upsert 3 rows: conn reset" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if w := WireFrom(err); w.Code != ErrorCodeDB || w.Message != "upsert 3 rows" {
		t.Fatalf("wire = %+v", w)
	}
}

func TestWithField_CopiesOnWrite(t *testing.T) {
	t.Parallel()
	base := InvalidArgf("price must not be negative")
	withF := WithField(base, "domains[0].price")

	if e, _ := As(base); e.Field() != "" {
		t.Fatal("original mutated")
	}
	if w := WireFrom(withF); w.Field != "domains[0].price" {
		t.Fatalf("wire = %+v", w)
	}
	plain := stderrs.New("x")
	if WithField(plain, "f") != plain {
		t.Fatal("foreign error should pass through")
	}
}

func TestFromPostgres(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code  string
		want  ErrorCode
		retry bool
	}{
		{pgUniqueViolation, ErrorCodeDuplicateKey, false},
		{pgCheckViolation, ErrorCodeValidation, false},
		{pgInvalidText, ErrorCodeInvalidArgument, false},
		{pgCannotConnectNow, ErrorCodeUnavailable, false},
		{pgDeadlock, ErrorCodeDB, true},
		{pgSerializationFailure, ErrorCodeDB, true},
	}
	for _, tc := range cases {
		pgErr := &pgconn.PgError{Code: tc.code, ColumnName: "domain"}
		err := FromPostgresf(pgErr, "insert analysis %s", "a1")
		if got := CodeOf(err); got != tc.want {
			t.Errorf("%s: code = %d, want %d", tc.code, got, tc.want)
		}
		if w := WireFrom(err); w.Field != "domain" {
			t.Errorf("%s: field = %q", tc.code, w.Field)
		}
		if got := IsRetryable(fmt.Errorf("tx: %w", pgErr)); got != tc.retry {
			t.Errorf("%s: retryable = %v", tc.code, got)
		}
	}

	if FromPostgres(nil, "x") != nil {
		t.Fatal("nil should stay nil")
	}
	if got := CodeOf(FromPostgres(stderrs.New("eof"), "read")); got != ErrorCodeDB {
		t.Fatalf("non pg code = %d", got)
	}
	if IsRetryable(context.Canceled) || !IsRetryable(stderrs.New("commit unexpectedly resulted in rollback")) {
		t.Fatal("IsRetryable text fallback")
	}
}
