package consent

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/domain/identity"
	"github.com/ehr/frontdesk/internal/platform/apperr"
	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/notification"
	"github.com/ehr/frontdesk/internal/platform/otp"
)

// PatientLookup supplies the phone number on file when a caller does not
// pass one.
type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Config struct {
	OTPLength     int
	DefaultRegion string
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	store    otp.Store
	sender   notification.OTPSender
	patients PatientLookup
	cfg      Config
	logger   zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, store otp.Store, sender notification.OTPSender,
	patients PatientLookup, cfg Config, logger zerolog.Logger) *Service {
	if cfg.OTPLength == 0 {
		cfg.OTPLength = otp.DefaultLength
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		store:    store,
		sender:   sender,
		patients: patients,
		cfg:      cfg,
		logger:   logger.With().Str("component", "consent").Logger(),
	}
}

func (s *Service) ListTypes(ctx context.Context) ([]*Type, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "load consent types")
	}
	if types == nil {
		types = []*Type{}
	}
	return types, nil
}

// GetConsents returns the patient's grant map. Types without a record are
// reported as not granted.
func (s *Service) GetConsents(ctx context.Context, patientID uuid.UUID) (*State, error) {
	types, err := s.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Persistence(err, "load patient consents")
	}
	grants := make(map[int64]bool, len(types))
	for _, t := range types {
		grants[t.ID] = false
	}
	for _, r := range records {
		grants[r.ConsentTypeID] = r.Granted
	}
	if records == nil {
		records = []*Record{}
	}
	return &State{
		PatientID:   patientID,
		Grants:      grants,
		Records:     records,
		Types:       types,
		OTPRequired: OTPRequired(grants, types),
	}, nil
}

// -- OTP --

// RequestOTP sends a fresh code to phone, or to the patient's phone on file
// when phone is blank. A resend inside the cooldown is rate limited.
func (s *Service) RequestOTP(ctx context.Context, patientID uuid.UUID, phone string) (*Challenge, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		p, err := s.patients.GetPatient(ctx, patientID)
		if err != nil {
			return nil, err
		}
		if p.Phone != nil {
			phone = strings.TrimSpace(*p.Phone)
		}
		if phone == "" {
			return nil, apperr.Validation("phone is required: patient has no phone on file")
		}
	}
	e164, err := NormalizePhone(phone, s.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}

	code, err := otp.Generate(s.cfg.OTPLength)
	if err != nil {
		return nil, err
	}
	subject := patientID.String()
	pending, err := s.store.Issue(ctx, subject, otp.Hash(code))
	if err != nil {
		var cooldown *otp.CooldownError
		if errors.As(err, &cooldown) {
			return nil, apperr.RateLimited("otp already sent, wait before requesting another", cooldown.Remaining)
		}
		return nil, apperr.Persistence(err, "otp could not be issued, retry")
	}

	if err := s.sender.SendOTP(ctx, e164, code); err != nil {
		if rerr := s.store.Release(ctx, subject); rerr != nil {
			s.logger.Error().Err(rerr).Str("patient_id", subject).Msg("release otp after failed send")
		}
		return nil, apperr.Persistence(err, "otp could not be sent, retry")
	}

	s.logger.Info().Str("patient_id", subject).Str("phone", MaskPhone(e164)).Msg("consent otp sent")
	return &Challenge{
		Phone:       MaskPhone(e164),
		ExpiresAt:   pending.ExpiresAt,
		ResendAfter: pending.ResendAfter,
	}, nil
}

// VerifyOTP reports whether code matches the patient's pending code. A wrong
// or expired code is false, not an error.
func (s *Service) VerifyOTP(ctx context.Context, patientID uuid.UUID, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, apperr.Validation("code is required")
	}
	err := s.store.Verify(ctx, patientID.String(), code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, otp.ErrMismatch), errors.Is(err, otp.ErrExpired):
		return false, nil
	case errors.Is(err, otp.ErrTooManyAttempts):
		return false, apperr.RateLimited("too many attempts, request a new code", 0)
	default:
		return false, apperr.Persistence(err, "otp could not be verified, retry")
	}
}

// -- Consents --

// SaveConsents writes the grant map. Granting an OTP-required type needs a
// consumed verification or an explicit bypass; a bypass stores
// otp_verified=false and is audited. A verification consumed by a save that
// fails to commit is restored.
func (s *Service) SaveConsents(ctx context.Context, in SaveInput) ([]*Record, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if len(in.Grants) == 0 {
		return nil, apperr.Validation("no consents to save")
	}
	types, err := s.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Type, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}
	ids := make([]int64, 0, len(in.Grants))
	for id := range in.Grants {
		if _, ok := byID[id]; !ok {
			return nil, apperr.Validation("unknown consent type: %d", id)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	required := OTPRequired(in.Grants, types)
	verified := false
	if in.OTPVerified {
		ok, err := s.store.ConsumeVerified(ctx, in.PatientID.String())
		if err != nil {
			return nil, apperr.Persistence(err, "otp state unavailable, retry")
		}
		if !ok && required && !in.AllowBypass {
			return nil, apperr.Consent("otp verification missing or expired")
		}
		verified = ok
	}
	if required && !verified && !in.AllowBypass {
		return nil, apperr.Consent("otp verification required")
	}
	bypassed := required && !verified

	records := make([]*Record, 0, len(ids))
	var granted []int64
	for _, id := range ids {
		g := in.Grants[id]
		records = append(records, &Record{
			PatientID:     in.PatientID,
			ConsentTypeID: id,
			Granted:       g,
			OTPVerified:   verified && g,
			Bypassed:      bypassed && g && byID[id].OTPRequired,
			RecordedBy:    in.ActorID,
		})
		if g {
			granted = append(granted, id)
		}
	}
	if granted == nil {
		granted = []int64{}
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, r := range records {
			if err := s.repo.Upsert(ctx, r); err != nil {
				return err
			}
		}
		return s.repo.AddAudit(ctx, &AuditEntry{
			PatientID:      in.PatientID,
			ActorID:        in.ActorID,
			GrantedTypeIDs: granted,
			OTPVerified:    verified,
			Bypassed:       bypassed,
		})
	})
	if err != nil {
		if verified {
			// The verification stays usable for the retry.
			if rerr := s.store.RestoreVerified(ctx, in.PatientID.String()); rerr != nil {
				s.logger.Error().Err(rerr).Str("patient_id", in.PatientID.String()).Msg("otp verification could not be restored")
			}
		}
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("patient", in.PatientID)
		}
		return nil, apperr.Persistence(err, "consents could not be saved, retry")
	}

	if bypassed {
		ev := s.logger.Warn().Str("patient_id", in.PatientID.String()).Ints64("granted_type_ids", granted)
		if in.ActorID != nil {
			ev = ev.Str("actor_id", in.ActorID.String())
		}
		ev.Msg("consent otp bypassed")
	}
	return records, nil
}

// -- Phone numbers --

// NormalizePhone parses phone in region (ISO 3166 alpha-2) and returns it in
// E.164 form.
func NormalizePhone(phone, region string) (string, error) {
	num, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", apperr.Validation("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// MaskPhone keeps the country prefix and the last three digits.
func MaskPhone(e164 string) string {
	if len(e164) <= 7 {
		return e164
	}
	return e164[:4] + strings.Repeat("*", len(e164)-7) + e164[len(e164)-3:]
}
