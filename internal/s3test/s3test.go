// Package s3test is an in memory S3 compatible server used to exercise the
// client against a service that independently verifies request signatures,
// the way the real one would.
//
// The server addresses buckets path style only and implements the subset of
// the API the client speaks: bucket and object lifecycle, V2 listings, batch
// deletes and presigned requests.
package s3test

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/relvacode/s3c"
	"go.uber.org/zap"
)

var xmlContentHeader = []byte("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")

// Keyring holds the credentials the server accepts, keyed by access key ID.
type Keyring map[string]string

// NewServer creates a Server accepting requests signed by any credential on
// the keyring. Buckets live in region, or us-east-1 if empty.
func NewServer(log *zap.Logger, keyring Keyring, region string) *Server {
	if region == "" {
		region = "us-east-1"
	}

	s := &Server{
		log:     log,
		keyring: keyring,
		region:  region,
		store:   NewStore(),
		uidGen:  uuid.New,
		timeNow: time.Now,
	}
	s.router = s.routes()
	return s
}

type Server struct {
	log     *zap.Logger
	keyring Keyring
	region  string
	store   *Store
	router  *mux.Router

	// uidGen generates request ids, replaced in tests
	uidGen func() uuid.UUID
	// timeNow checks presigned URL expiry, replaced in tests
	timeNow func() time.Time
}

// Store exposes the backing store so tests can seed or inspect state
// directly.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = s.plainError(&s3c.Error{
		ErrorCode: s3c.MethodNotAllowed,
		Message:   "The specified method is not allowed against this resource.",
	})
	router.MethodNotAllowedHandler = router.NotFoundHandler

	router.HandleFunc("/", s.handle(s.listBuckets)).Methods(http.MethodGet)

	router.HandleFunc("/{bucket}", s.handle(s.getBucketLocation)).Methods(http.MethodGet).Queries("location", "")
	router.HandleFunc("/{bucket}", s.handle(s.listObjectsV2)).Methods(http.MethodGet).Queries("list-type", "2")
	router.HandleFunc("/{bucket}", s.handle(s.deleteObjects)).Methods(http.MethodPost).Queries("delete", "")
	router.HandleFunc("/{bucket}", s.handle(s.createBucket)).Methods(http.MethodPut)
	router.HandleFunc("/{bucket}", s.handle(s.headBucket)).Methods(http.MethodHead)
	router.HandleFunc("/{bucket}", s.handle(s.deleteBucket)).Methods(http.MethodDelete)

	router.HandleFunc("/{bucket}/{key:.+}", s.handle(s.putObject)).Methods(http.MethodPut)
	router.HandleFunc("/{bucket}/{key:.+}", s.handle(s.getObject)).Methods(http.MethodGet)
	router.HandleFunc("/{bucket}/{key:.+}", s.handle(s.headObject)).Methods(http.MethodHead)
	router.HandleFunc("/{bucket}/{key:.+}", s.handle(s.deleteObject)).Methods(http.MethodDelete)

	return router
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Server", "s3test")
	s.router.ServeHTTP(rw, r)
}

// handlerFunc handles one routed request, returning an error to be sent as
// the standard XML error envelope.
type handlerFunc func(ctx *requestContext) *s3c.Error

// handle authenticates the request and builds the per request context before
// delegating to h.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		requestID := s.uidGen()
		rw.Header().Set("x-amz-request-id", requestID.String())

		vars := mux.Vars(r)
		ctx := &requestContext{
			Logger: s.log.With(
				zap.String("request-id", requestID.String()),
				zap.String("http-method", r.Method),
				zap.String("http-uri", r.URL.RequestURI()),
			),
			id:      requestID,
			bucket:  vars["bucket"],
			key:     vars["key"],
			request: r,
			rw:      rw,
		}

		if err := s.authenticate(r); err != nil {
			ctx.sendError(err)
			return
		}

		if err := h(ctx); err != nil {
			ctx.sendError(err)
		}
	}
}

// plainError responds with a fixed error for requests that match no route.
func (s *Server) plainError(err *s3c.Error) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		requestID := s.uidGen()
		rw.Header().Set("x-amz-request-id", requestID.String())

		ctx := &requestContext{
			Logger:  s.log,
			id:      requestID,
			request: r,
			rw:      rw,
		}
		ctx.sendError(err)
	})
}

type requestContext struct {
	*zap.Logger
	id      uuid.UUID
	bucket  string
	key     string
	request *http.Request
	rw      http.ResponseWriter
}

func (ctx *requestContext) header() http.Header {
	return ctx.rw.Header()
}

// sendPlain sends the response status and headers and returns a writer for
// the body.
func (ctx *requestContext) sendPlain(statusCode int) io.Writer {
	ctx.rw.WriteHeader(statusCode)
	ctx.Info(http.StatusText(statusCode))
	return ctx.rw
}

// sendXML encodes payload as the response body.
func (ctx *requestContext) sendXML(statusCode int, payload any) {
	var b bytes.Buffer

	enc := xml.NewEncoder(&b)
	enc.Indent("", "  ")

	if err := enc.Encode(payload); err != nil {
		ctx.Error("Failed to encode XML response", zap.Error(err))
		ctx.sendPlain(http.StatusInternalServerError)
		return
	}

	ctx.header().Set("Content-Type", "application/xml")

	w := ctx.sendPlain(statusCode)
	_, _ = w.Write(xmlContentHeader)
	_, _ = b.WriteTo(w)
}

// sendError replies with the standard XML error envelope. The error is
// copied so that shared error values are never written to.
func (ctx *requestContext) sendError(err *s3c.Error) {
	ctx.Error(err.Message, zap.String("err-code", err.Code))

	e := *err
	if e.Resource == "" {
		e.Resource = ctx.request.URL.Path
	}
	e.RequestID = ctx.id.String()

	ctx.sendXML(e.StatusCode, &e)
}
