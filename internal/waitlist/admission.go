package waitlist

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/ratelimit"
	"github.com/okarlsson/waitgate/pkg/logger"
	"github.com/okarlsson/waitgate/pkg/metrics"
)

var (
	// ErrInvalidInput covers missing credentials and malformed emails.
	ErrInvalidInput = errors.New("waitlist: invalid input")
	// ErrUnknownCredential indicates the API key resolves to no project.
	ErrUnknownCredential = errors.New("waitlist: unknown credential")
	// ErrFrozen indicates the project is not accepting joins.
	ErrFrozen = errors.New("waitlist: waitlist is frozen")
	// ErrRateLimited indicates the credential exhausted its window budget.
	ErrRateLimited = errors.New("waitlist: rate limit exceeded")
)

// Conservative local@domain.tld shape; anything fancier is the mail server's
// problem, not the waitlist's.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxEmailLength = 255

// Each storage step runs under its own short deadline so one slow query
// cannot hold a join request open indefinitely.
const opTimeout = 3 * time.Second

// referralCredit is the fixed priority boost granted per successful referral.
// Uncapped: every distinct referred joiner credits the referrer again.
const referralCredit = 1

// JoinInput is a single public join attempt.
type JoinInput struct {
	Credential   string
	Email        string
	ReferralCode string
}

// JoinResult reports the outcome of an accepted join. Position and Tier are
// mutually exclusive and both may be absent when rank computation degraded.
type JoinResult struct {
	AlreadyMember bool
	Rank          Rank
	ReferralCode  string
}

// Admission orchestrates the join pipeline: validate input, resolve the
// credential, check the freeze flag, consume the rate-limit budget, detect
// duplicates, credit the referrer, insert, and rank. It is the only component
// with a multi-step protocol; everything it calls is a single operation.
type Admission struct {
	db      *gorm.DB
	ledger  *Ledger
	ranks   *Calculator
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

// NewAdmission constructs the admission controller.
func NewAdmission(db *gorm.DB, ledger *Ledger, ranks *Calculator, limiter *ratelimit.Limiter) (*Admission, error) {
	if db == nil {
		return nil, errors.New("waitlist: db is required")
	}
	if ledger == nil || ranks == nil || limiter == nil {
		return nil, errors.New("waitlist: ledger, calculator and limiter are required")
	}
	return &Admission{
		db:      db,
		ledger:  ledger,
		ranks:   ranks,
		limiter: limiter,
		log:     logger.WithModule("admission"),
	}, nil
}

// Join admits an email to the waitlist identified by the credential. Each
// numbered step is a potential exit; the admission decision (is this email
// now a member) is the primary contract, and referral crediting and rank
// computation degrade rather than fail it.
func (a *Admission) Join(ctx context.Context, input JoinInput) (*JoinResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Input validation.
	email := models.NormalizeEmail(input.Email)
	if input.Credential == "" || email == "" || len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		metrics.JoinAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidInput
	}

	// 2. Credential resolution. The lookup is by credential alone, so a
	// caller probing with someone else's email learns nothing.
	project, err := a.projectByCredential(ctx, input.Credential)
	if err != nil {
		if errors.Is(err, ErrUnknownCredential) {
			metrics.JoinAttempts.WithLabelValues("unauthorized").Inc()
			return nil, err
		}
		metrics.JoinAttempts.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	// 3. Freeze check, before the limiter is consulted: a flood against a
	// closed project must not burn the legitimate client's budget. The
	// attempt still lands in the abuse metrics.
	if project.IsFrozen {
		metrics.JoinAttempts.WithLabelValues("frozen").Inc()
		return nil, ErrFrozen
	}

	// 4. Rate limit.
	decision, err := a.allow(ctx, input.Credential)
	if err != nil {
		metrics.JoinAttempts.WithLabelValues("storage_error").Inc()
		return nil, err
	}
	if !decision.Allowed {
		metrics.JoinAttempts.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// 5. Duplicate check. A repeat join is a success that changes nothing:
	// same referral code, rank from the original join timestamp.
	existing, err := a.findEntry(ctx, project.ID, email)
	switch {
	case err == nil:
		metrics.JoinAttempts.WithLabelValues("already_member").Inc()
		return &JoinResult{
			AlreadyMember: true,
			Rank:          a.rankOf(ctx, project, existing),
			ReferralCode:  existing.ReferralCode,
		}, nil
	case !errors.Is(err, ErrEntryNotFound):
		metrics.JoinAttempts.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	// 6. Referral credit, best effort: a failure here must not lose the
	// membership, so the error is logged and swallowed.
	score := 0
	var referredBy *string
	if input.ReferralCode != "" {
		referredBy = &input.ReferralCode
		credited, creditErr := a.credit(ctx, project.ID, input.ReferralCode)
		switch {
		case creditErr != nil:
			a.log.Warn("referral credit failed",
				zap.String("project_id", project.ID),
				zap.Error(creditErr),
			)
		case credited:
			score = referralCredit
			metrics.ReferralCredits.Inc()
		}
	}

	// 7. Insertion. A lost race against an identical concurrent join comes
	// back as the existing entry, reported as already a member.
	entry, created, err := a.insert(ctx, project.ID, email, referredBy, score)
	if err != nil {
		metrics.JoinAttempts.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	// 8. Rank and response.
	outcome := "accepted"
	if !created {
		outcome = "already_member"
	}
	metrics.JoinAttempts.WithLabelValues(outcome).Inc()

	a.log.Info("join admitted",
		zap.String("project_id", project.ID),
		zap.Bool("already_member", !created),
	)

	return &JoinResult{
		AlreadyMember: !created,
		Rank:          a.rankOf(ctx, project, entry),
		ReferralCode:  entry.ReferralCode,
	}, nil
}

func (a *Admission) projectByCredential(ctx context.Context, credential string) (*models.Project, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var project models.Project
	err := a.db.WithContext(opCtx).Take(&project, "api_key = ?", credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownCredential
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (a *Admission) allow(ctx context.Context, credential string) (ratelimit.Decision, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return a.limiter.Allow(opCtx, credential)
}

func (a *Admission) findEntry(ctx context.Context, projectID, email string) (*models.WaitlistEntry, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return a.ledger.FindByEmail(opCtx, projectID, email)
}

func (a *Admission) credit(ctx context.Context, projectID, code string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return a.ledger.CreditReferrer(opCtx, projectID, code)
}

func (a *Admission) insert(ctx context.Context, projectID, email string, referredBy *string, score int) (*models.WaitlistEntry, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return a.ledger.InsertOrFetch(opCtx, projectID, email, referredBy, score)
}

// rankOf degrades to an empty rank on storage trouble: the membership result
// still goes out, just without a position or tier.
func (a *Admission) rankOf(ctx context.Context, project *models.Project, entry *models.WaitlistEntry) Rank {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rank, err := a.ranks.RankOf(opCtx, project, entry)
	if err != nil {
		a.log.Warn("rank computation failed",
			zap.String("project_id", project.ID),
			zap.Error(err),
		)
		return Rank{}
	}
	return rank
}
