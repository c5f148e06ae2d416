package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"orbe/internal/workflow"
	"orbe/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

var decoder = newDecoder()

func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		return decimal.NewFromString(vals[0])
	}, decimal.Decimal{})
	return d
}

// Workflow is the case workflow as seen by the HTTP handlers.
type Workflow interface {
	CreateCase(ctx context.Context, in workflow.CreateCaseInput) (*types.Case, error)
	Case(ctx context.Context, caseID string) (*types.Case, error)
	Cases(ctx context.Context, filter types.CaseFilter) ([]*types.Case, error)
	Attachments(ctx context.Context, caseID string) ([]*types.Attachment, error)
	Attachment(ctx context.Context, attachmentID string) (*types.Attachment, error)
	AttemptTransition(ctx context.Context, caseID string, name workflow.TransitionName, actor string, payload workflow.TransitionPayload) (workflow.TransitionResult, error)
	RecordAttachmentCreated(ctx context.Context, attachment *types.Attachment) error
	DeleteAttachment(ctx context.Context, attachmentID string) (*types.Attachment, workflow.DeletionResult, error)
	ListTimeline(ctx context.Context, caseID string) ([]*types.TimelineEvent, error)

	CreateDonationRequest(ctx context.Context, in workflow.CreateDonationRequestInput) (*types.DonationRequest, error)
	DonationRequest(ctx context.Context, requestID string) (*types.DonationRequest, error)
	ApproveDonationRequest(ctx context.Context, requestID, reviewer string) (*types.Case, error)
	RejectDonationRequest(ctx context.Context, requestID, reviewer, reason string) (*types.DonationRequest, error)
}

// EvidenceStorage holds attachment binaries.
type EvidenceStorage interface {
	Key(caseID, attachmentID, fileName string) string
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key, fileName string) (string, time.Time, error)
}

type Authenticator interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

type KeySource interface {
	Lookup(ctx context.Context, u string) (jwk.Set, error)
}

type Service struct {
	logger  *logrus.Logger
	config  *types.Config
	limiter *limiter.Limiter

	workflow Workflow
	evidence EvidenceStorage
	health   func(ctx context.Context) error

	cognitoClient Authenticator
	cookie        *securecookie.SecureCookie

	jwksCache KeySource
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	cognitoClient Authenticator,
	wf Workflow,
	evidence EvidenceStorage,
	health func(ctx context.Context) error,
	jwksCache KeySource,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie hash key: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("decode cookie block key: %w", err)
	}

	rate, err := limiter.NewRateFromFormatted(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", config.RateLimit, err)
	}

	s := &Service{
		logger:  logger,
		config:  config,
		limiter: limiter.New(memory.NewStore(), rate),

		workflow: wf,
		evidence: evidence,
		health:   health,

		cognitoClient: cognitoClient,
		cookie:        securecookie.New(hashKey, blockKey),

		jwksCache: jwksCache,
		jwksURL:   jwksURL,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.HandleFunc("/login", s.handlePostLogin, http.MethodPost)
	r.HandleFunc("/logout", s.handlePostLogout, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/cases/mine", s.handleGetMyCases, http.MethodGet)
		r.HandleFunc("/cases/:caseID", s.handleGetCase, http.MethodGet)
		r.HandleFunc("/cases/:caseID/timeline", s.handleGetTimeline, http.MethodGet)
		r.HandleFunc("/attachments/:attachmentID/url", s.handleGetAttachmentURL, http.MethodGet)
		r.HandleFunc("/donation-requests/:requestID", s.handleGetDonationRequest, http.MethodGet)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireReviewer)

			r.HandleFunc("/cases", s.handleGetCases, http.MethodGet)
		})

		r.Group(func(r *flow.Mux) {
			r.Use(s.RateLimit)

			r.HandleFunc("/cases", s.handlePostCase, http.MethodPost)
			r.HandleFunc("/cases/:caseID/transitions/:transition", s.handlePostTransition, http.MethodPost)
			r.HandleFunc("/cases/:caseID/attachments", s.handlePostAttachment, http.MethodPost)
			r.HandleFunc("/attachments/:attachmentID", s.handleDeleteAttachment, http.MethodDelete)
			r.HandleFunc("/donation-requests", s.handlePostDonationRequest, http.MethodPost)

			r.Group(func(r *flow.Mux) {
				r.Use(s.RequireReviewer)

				r.HandleFunc("/donation-requests/:requestID/approve", s.handleApproveDonationRequest, http.MethodPost)
				r.HandleFunc("/donation-requests/:requestID/reject", s.handleRejectDonationRequest, http.MethodPost)
			})
		})
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		s.logger.WithError(err).Error("health check failed")
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
