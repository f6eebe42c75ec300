// Package classifier turns one record into exactly one classification result,
// spreading attempts over the credential pool and retrying failures.
package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/credential"
	"github.com/vietddude/papersift/internal/infra/llm"
	"github.com/vietddude/papersift/internal/pipeline/metrics"
)

// DefaultPrompt screens papers for AI ethics, hallucination and bias topics.
const DefaultPrompt = `Analyze this research paper and determine if it discusses any of these topics:
- AI Ethics (fairness, responsibility, moral implications, societal impact)
- AI Hallucination (false information generation, factual errors, confabulation)
- AI Bias (discrimination, unfairness in AI systems, bias in training data or outputs)

Title: {{.Title}}

Abstract: {{.Abstract}}

Return is_positive=true ONLY if the paper substantially discusses at least one of these topics.
Return is_positive=false if it's just general AI research, technical methods, or applications without ethical concerns.

List all applicable categories found. Provide your confidence level (high, medium or low) and brief reasoning.
`

const noAbstract = "No abstract available"

// Config configures a Classifier.
type Config struct {
	Policy RetryPolicy
	// PromptTemplate is a text/template over .Title and .Abstract.
	// Empty means DefaultPrompt.
	PromptTemplate string
}

// Classifier classifies records through a Backend.
type Classifier struct {
	pool    *credential.Pool
	backend llm.Backend
	policy  RetryPolicy
	prompt  *template.Template
	logger  *slog.Logger
}

// New creates a Classifier. It fails only on an unparsable prompt template.
func New(pool *credential.Pool, backend llm.Backend, cfg Config, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	text := cfg.PromptTemplate
	if text == "" {
		text = DefaultPrompt
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	return &Classifier{
		pool:    pool,
		backend: backend,
		policy:  cfg.Policy,
		prompt:  tmpl,
		logger:  logger.With("component", "classifier"),
	}, nil
}

type promptData struct {
	Title    string
	Abstract string
}

// Prompt renders the prompt for rec.
func (c *Classifier) Prompt(rec domain.Record) (string, error) {
	data := promptData{Title: rec.Title, Abstract: noAbstract}
	if rec.HasAbstract() {
		data.Abstract = rec.Abstract
	}

	var buf bytes.Buffer
	if err := c.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// Classify returns the result for rec. Every failure short of ctx ending is
// folded into a failed result; the error is non-nil only when ctx is done, in
// which case no result exists and the record must stay pending.
func (c *Classifier) Classify(ctx context.Context, rec domain.Record) (domain.ClassificationResult, error) {
	prompt, err := c.Prompt(rec)
	if err != nil {
		return domain.FailedResult(rec.ID, "", err.Error(), 0), nil
	}

	var (
		attempts   int
		lastSuffix string
		lastErr    error
		verdict    llm.Verdict
	)

	err = retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		if attempts > 0 {
			metrics.RetriesTotal.Inc()
		}
		attempts++

		h := c.pool.Next()
		lastSuffix = h.Suffix()

		v, err := c.attempt(ctx, h, prompt)
		if err == nil {
			verdict = v
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if attempts < c.policy.MaxAttempts {
			c.logger.Warn("Classification attempt failed, retrying",
				"record", rec.ID,
				"attempt", attempts,
				"credential", lastSuffix,
				"next_delay", c.policy.Delay(attempts-1),
				"error", err,
			)
		}
		return retry.RetryableError(err)
	})

	if err == nil {
		return domain.ClassificationResult{
			RecordID:         rec.ID,
			IsPositive:       verdict.IsPositive,
			Categories:       verdict.Categories,
			Confidence:       verdict.Confidence,
			Reasoning:        verdict.Reasoning,
			Succeeded:        true,
			CredentialSuffix: lastSuffix,
			Attempts:         attempts,
		}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ClassificationResult{}, ctxErr
	}

	if lastErr == nil {
		lastErr = err
	}
	detail := lastErr.Error()
	if c.policy.Unbounded {
		detail = fmt.Sprintf("exceeded maximum retries (%d): %s", attempts, detail)
	}

	c.logger.Error("Classification failed",
		"record", rec.ID,
		"attempts", attempts,
		"credential", lastSuffix,
		"error", lastErr,
	)
	return domain.FailedResult(rec.ID, lastSuffix, detail, attempts), nil
}

// attempt performs one rate-limited call under h and validates the response.
func (c *Classifier) attempt(ctx context.Context, h *credential.Handle, prompt string) (llm.Verdict, error) {
	if err := h.Limiter.Acquire(ctx); err != nil {
		return llm.Verdict{}, err
	}
	suffix := h.Suffix()
	metrics.RateLimitWait.WithLabelValues(suffix).Observe(h.Limiter.LastWait().Seconds())

	start := time.Now()
	raw, err := c.backend.Classify(ctx, h.Key, prompt)
	metrics.APILatency.WithLabelValues(suffix).Observe(time.Since(start).Seconds())
	metrics.APICallsTotal.WithLabelValues(suffix).Inc()

	var v llm.Verdict
	if err == nil {
		v, err = llm.ParseVerdict(raw)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return llm.Verdict{}, err
		}
		c.pool.RecordOutcome(h, false)
		metrics.APIErrorsTotal.WithLabelValues(suffix).Inc()
		return llm.Verdict{}, err
	}

	c.pool.RecordOutcome(h, true)
	return v, nil
}
