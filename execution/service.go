package execution

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/sandbox"
)

// Request is one submission as received from a client
type Request struct {
	Code     string `json:"code" yaml:"code"`
	Language string `json:"language" yaml:"language"`
	Stdin    string `json:"stdin,omitempty" yaml:"stdin,omitempty"`
}

// Runner runs a validated job. *sandbox.Runner implements it.
type Runner interface {
	Run(ctx context.Context, job sandbox.Job) sandbox.Result
}

// Service validates requests and dispatches them to the sandbox
type Service struct {
	logger   *zap.Logger
	registry *language.Registry
	runner   Runner
	slots    chan struct{}
	newID    func() string
}

// ServiceOption defines a functional option for Service
type ServiceOption func(*Service)

// WithMaxConcurrent bounds the number of executions in flight. n <= 0 means unbounded.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		} else {
			s.slots = nil
		}
	}
}

// WithIDGenerator sets the function used to mint execution IDs
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// New creates a Service
func New(logger *zap.Logger, registry *language.Registry, runner Runner, opts ...ServiceOption) *Service {
	s := &Service{
		logger:   logger,
		registry: registry,
		runner:   runner,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewFromConfig creates a Service with the admission limit configured in cfg
func NewFromConfig(logger *zap.Logger, cfg *config.Config, registry *language.Registry, runner *sandbox.Runner) *Service {
	return New(logger.Named("execution"), registry, runner, WithMaxConcurrent(cfg.Sandbox.MaxConcurrent))
}

// Validate checks req without running anything.
func (s *Service) Validate(req Request) error {
	if req.Code == "" {
		return &ValidationError{Field: "code", Message: "Code is required"}
	}
	if req.Language == "" {
		return &ValidationError{Field: "language", Message: "Language is required"}
	}
	if !s.registry.Supports(req.Language) {
		return &ValidationError{
			Field:   "language",
			Message: "Invalid language. Supported: " + strings.Join(s.registry.IDs(), ", "),
		}
	}
	return nil
}

// Languages returns the registered language profiles.
func (s *Service) Languages() []language.Profile {
	return s.registry.Profiles()
}

// Execute validates req and runs it. A *ValidationError is returned for a
// rejected request and a *FaultError for an internal fault; every other
// outcome, including timeouts and container failures, is carried by the
// result.
func (s *Service) Execute(ctx context.Context, req Request) (result sandbox.Result, err error) {
	if err := s.Validate(req); err != nil {
		s.logger.Info("execution request rejected", zap.String("language", req.Language), zap.Error(err))
		return sandbox.Result{}, err
	}

	id := s.newID()
	log := s.logger.With(zap.String("execution_id", id), zap.String("language", req.Language))

	defer func() {
		if r := recover(); r != nil {
			log.Error("execution panicked", zap.Any("panic", r), zap.Stack("stack"))
			result, err = sandbox.Result{}, &FaultError{Cause: r}
		}
	}()

	if !s.acquire(ctx) {
		log.Warn("execution cancelled while waiting for a slot", zap.Error(ctx.Err()))
		return sandbox.Failure(id, sandbox.ErrMsgCancelled), nil
	}
	defer s.release()

	log.Debug("dispatching execution", zap.Int("code_len", len(req.Code)), zap.Bool("has_stdin", req.Stdin != ""))

	result = s.runner.Run(ctx, sandbox.Job{
		ExecutionID: id,
		Language:    req.Language,
		Code:        req.Code,
		Stdin:       req.Stdin,
	})
	if result.ExecutionID == "" {
		result.ExecutionID = id
	}
	return result, nil
}

func (s *Service) acquire(ctx context.Context) bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) release() {
	if s.slots != nil {
		<-s.slots
	}
}

// Capacity returns the admission limit, 0 when unbounded.
func (s *Service) Capacity() int {
	return cap(s.slots)
}
