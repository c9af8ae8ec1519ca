package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/extract"
	"github.com/cloo-solutions/nutrikb/internal/logger"
	"github.com/cloo-solutions/nutrikb/internal/openai"
	"github.com/cloo-solutions/nutrikb/internal/pagination"
	"github.com/cloo-solutions/nutrikb/internal/telemetry"
)

// Limits on how much artifact text goes into each prompt.
const (
	maxQuestions          = 15
	questionContextChars  = 15000
	recommendContextChars = 8000
	labContextChars       = 10000
	psychometricArtifacts = 3
	labArtifacts          = 4
	goldExcerptsTopK      = 3
	answersRawKey         = "raw"
)

// ConsultationRepositoryInterface defines the repository interface for consultation persistence
type ConsultationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Consultation) error
	GetByID(ctx context.Context, id string) (*domain.Consultation, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) (*ConsultationPageResult, error)
	AddArtifact(ctx context.Context, a *domain.Artifact) error
	ListArtifacts(ctx context.Context, consultationID string, kind domain.ArtifactKind) ([]*domain.Artifact, error)
	SaveRecord(ctx context.Context, r *domain.Record) error
	GetRecord(ctx context.Context, consultationID string, kind domain.RecordKind) (*domain.Record, error)
}

type ConsultationPageResult struct {
	Items      []*domain.Consultation
	NextCursor string
	HasMore    bool
}

// Completer produces a completion for role-tagged messages.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message, temperature float32) (string, error)
}

// ContextRetriever produces knowledge-bank context for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// ConsultationService runs the consultation workflow: artifacts, parent
// questions, answers, test recommendations and the care plan.
type ConsultationService struct {
	repo      ConsultationRepositoryInterface
	txRunner  TxRunner
	retriever ContextRetriever
	rules     *RuleEngine
	completer Completer
	uuidGen   UUIDGenerator
}

func NewConsultationService(
	repo ConsultationRepositoryInterface,
	txRunner TxRunner,
	retriever ContextRetriever,
	rules *RuleEngine,
	completer Completer,
) *ConsultationService {
	return NewConsultationServiceWithUUIDGen(repo, txRunner, retriever, rules, completer, &DefaultUUIDGenerator{})
}

// NewConsultationServiceWithUUIDGen creates a ConsultationService with custom UUID generator (for testing)
func NewConsultationServiceWithUUIDGen(
	repo ConsultationRepositoryInterface,
	txRunner TxRunner,
	retriever ContextRetriever,
	rules *RuleEngine,
	completer Completer,
	uuidGen UUIDGenerator,
) *ConsultationService {
	return &ConsultationService{
		repo:      repo,
		txRunner:  txRunner,
		retriever: retriever,
		rules:     rules,
		completer: completer,
		uuidGen:   uuidGen,
	}
}

type CreateConsultationInput struct {
	ChildName   string
	DateOfBirth string
	Consultant  string
}

func (s *ConsultationService) Create(ctx context.Context, input CreateConsultationInput) (*domain.Consultation, error) {
	c := domain.NewConsultation(
		s.uuidGen.NewString(),
		strings.TrimSpace(input.ChildName),
		strings.TrimSpace(input.DateOfBirth),
		strings.TrimSpace(input.Consultant),
		time.Now().UTC(),
	)
	if err := domain.ValidateConsultation(c); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid consultation", err)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConsultationDetails is a consultation with its artifacts and generated records.
type ConsultationDetails struct {
	Consultation *domain.Consultation
	Artifacts    []*domain.Artifact
	Questions    []string
	Answers      map[string]string
	Tests        *domain.TestsRecord
	Plan         *domain.PlanRecord
}

func (s *ConsultationService) Get(ctx context.Context, id string) (*ConsultationDetails, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConsultationService.Get", telemetry.SpanAttributes{
		ConsultationID: id,
		Operation:      "get",
	})
	defer span.End()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.repo.ListArtifacts(ctx, id, "")
	if err != nil {
		return nil, err
	}

	details := &ConsultationDetails{Consultation: c, Artifacts: artifacts}

	var questions domain.Questions
	if ok, err := s.loadRecord(ctx, id, domain.RecordKindQuestions, &questions); err != nil {
		return nil, err
	} else if ok {
		details.Questions = questions.Questions
	}
	if _, err := s.loadRecord(ctx, id, domain.RecordKindAnswers, &details.Answers); err != nil {
		return nil, err
	}
	var tests domain.TestsRecord
	if ok, err := s.loadRecord(ctx, id, domain.RecordKindRecommendations, &tests); err != nil {
		return nil, err
	} else if ok {
		details.Tests = &tests
	}
	var plan domain.PlanRecord
	if ok, err := s.loadRecord(ctx, id, domain.RecordKindPlan, &plan); err != nil {
		return nil, err
	} else if ok {
		details.Plan = &plan
	}

	return details, nil
}

type ListConsultationsInput struct {
	Cursor string
	Limit  int
}

type ListConsultationsOutput struct {
	Items   []*domain.Consultation
	Cursor  string
	HasMore bool
}

func (s *ConsultationService) List(ctx context.Context, input ListConsultationsInput) (*ListConsultationsOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit := pagination.ClampLimit(input.Limit)
	result, err := s.repo.List(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &ListConsultationsOutput{Items: result.Items, Cursor: result.NextCursor, HasMore: result.HasMore}, nil
}

type AddArtifactInput struct {
	ConsultationID string
	Kind           domain.ArtifactKind
	Filename       string
	Content        string
}

// AddArtifact attaches parsed text to an existing consultation.
func (s *ConsultationService) AddArtifact(ctx context.Context, input AddArtifactInput) (*domain.Artifact, error) {
	if !domain.IsValidArtifactKind(input.Kind) {
		return nil, domain.ErrInvalidArtifactKind
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.ErrEmptyDocument
	}

	a := &domain.Artifact{
		ID:             s.uuidGen.NewString(),
		ConsultationID: input.ConsultationID,
		Kind:           input.Kind,
		Filename:       filepath.Base(input.Filename),
		Content:        input.Content,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		repo := repos.Consultations()
		if _, err := repo.GetByID(ctx, input.ConsultationID); err != nil {
			return err
		}
		return repo.AddArtifact(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AddArtifactFile extracts text from an uploaded file and attaches it.
func (s *ConsultationService) AddArtifactFile(ctx context.Context, consultationID string, kind domain.ArtifactKind, filename string, r io.Reader) (*domain.Artifact, error) {
	text, err := extract.Text(filename, r)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "could not read "+filepath.Base(filename), err)
	}
	return s.AddArtifact(ctx, AddArtifactInput{
		ConsultationID: consultationID,
		Kind:           kind,
		Filename:       filename,
		Content:        text,
	})
}

// GenerateQuestions drafts parent questions from the psychometric reports and
// similar knowledge-bank excerpts. A retrieval failure does not stop the
// draft; the result is flagged instead.
func (s *ConsultationService) GenerateQuestions(ctx context.Context, id string) (*domain.Questions, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConsultationService.GenerateQuestions", telemetry.SpanAttributes{
		ConsultationID: id,
		Operation:      "questions",
	})
	defer span.End()

	psych, err := s.artifactText(ctx, id, domain.ArtifactKindPsychometric, psychometricArtifacts, questionContextChars)
	if err != nil {
		return nil, err
	}

	result := &domain.Questions{}
	gold := ""
	if s.retriever != nil {
		gold, err = s.retriever.Retrieve(ctx, psych, goldExcerptsTopK)
		if err != nil {
			logger.Warn("continuing without knowledge-bank excerpts", "consultation_id", id, "err", err)
			gold = ""
			result.ContextUnavailable = true
		}
	}

	out, err := s.complete(ctx, questionsSystem, BuildQuestionPrompt(psych, gold), questionsTemperature)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result.Questions = ParseQuestions(out, maxQuestions)
	if err := s.saveRecord(ctx, id, domain.RecordKindQuestions, result); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveAnswers stores the parents' answers, replacing earlier ones.
func (s *ConsultationService) SaveAnswers(ctx context.Context, id string, answers map[string]string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if answers == nil {
		answers = map[string]string{}
	}
	return s.saveRecord(ctx, id, domain.RecordKindAnswers, answers)
}

// RecommendTests combines the rule engine's picks with a completion that
// groups and explains them.
func (s *ConsultationService) RecommendTests(ctx context.Context, id string) (*domain.TestsRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConsultationService.RecommendTests", telemetry.SpanAttributes{
		ConsultationID: id,
		Operation:      "recommend",
	})
	defer span.End()

	psych, err := s.artifactText(ctx, id, domain.ArtifactKindPsychometric, psychometricArtifacts, recommendContextChars)
	if err != nil {
		return nil, err
	}
	answers, err := s.answersText(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := s.rules.Recommend(psych, answers)
	ruleYAML, err := RecommendationYAML(rec)
	if err != nil {
		return nil, err
	}

	md, err := s.complete(ctx, testsSystem, BuildTestPrompt(psych, answers, ruleYAML), testsTemperature)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	record := &domain.TestsRecord{RuleBased: rec.RuleBased, Approved: rec.Approved, Markdown: md}
	if err := s.saveRecord(ctx, id, domain.RecordKindRecommendations, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GeneratePlan drafts the care plan for clinician review.
func (s *ConsultationService) GeneratePlan(ctx context.Context, id string) (*domain.PlanRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConsultationService.GeneratePlan", telemetry.SpanAttributes{
		ConsultationID: id,
		Operation:      "plan",
	})
	defer span.End()

	psych, err := s.artifactText(ctx, id, domain.ArtifactKindPsychometric, psychometricArtifacts, recommendContextChars)
	if err != nil {
		return nil, err
	}
	labs, err := s.artifactText(ctx, id, domain.ArtifactKindLab, labArtifacts, labContextChars)
	if err != nil {
		return nil, err
	}
	answers, err := s.answersText(ctx, id)
	if err != nil {
		return nil, err
	}

	var tests domain.TestsRecord
	if _, err := s.loadRecord(ctx, id, domain.RecordKindRecommendations, &tests); err != nil {
		return nil, err
	}

	md, err := s.complete(ctx, planSystem, BuildPlanPrompt(psych, answers, labs, tests.Markdown), planTemperature)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	plan := &domain.PlanRecord{Markdown: md}
	if err := s.saveRecord(ctx, id, domain.RecordKindPlan, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *ConsultationService) complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	if s.completer == nil {
		return "", domain.ErrCompletionNotConfigured
	}
	return s.completer.Complete(ctx, promptMessages(system, prompt), temperature)
}

// artifactText joins the newest n artifacts of kind, oldest first, capped at
// maxChars characters. It also confirms the consultation exists.
func (s *ConsultationService) artifactText(ctx context.Context, id string, kind domain.ArtifactKind, n, maxChars int) (string, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return "", err
	}
	artifacts, err := s.repo.ListArtifacts(ctx, id, kind)
	if err != nil {
		return "", err
	}
	if len(artifacts) > n {
		artifacts = artifacts[len(artifacts)-n:]
	}
	texts := make([]string, len(artifacts))
	for i, a := range artifacts {
		texts[i] = a.Content
	}
	return headRunes(strings.Join(texts, "\n\n"), maxChars), nil
}

// answersText renders stored answers for a prompt. A "raw" answer is used
// verbatim; other keys are listed in order.
func (s *ConsultationService) answersText(ctx context.Context, id string) (string, error) {
	var answers map[string]string
	if _, err := s.loadRecord(ctx, id, domain.RecordKindAnswers, &answers); err != nil {
		return "", err
	}
	if raw, ok := answers[answersRawKey]; ok && len(answers) == 1 {
		return raw, nil
	}
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+answers[k])
	}
	return strings.Join(lines, "\n"), nil
}

func (s *ConsultationService) saveRecord(ctx context.Context, id string, kind domain.RecordKind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	return s.repo.SaveRecord(ctx, &domain.Record{
		ConsultationID: id,
		Kind:           kind,
		Payload:        data,
		CreatedAt:      time.Now().UTC(),
	})
}

// loadRecord decodes the stored record into dst. A missing record leaves dst
// untouched and reports false.
func (s *ConsultationService) loadRecord(ctx context.Context, id string, kind domain.RecordKind, dst any) (bool, error) {
	r, err := s.repo.GetRecord(ctx, id, kind)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(r.Payload, dst); err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeDataIntegrity, fmt.Sprintf("corrupt %s record", kind), err)
	}
	return true, nil
}

func headRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
