package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/credential"
	"landRegistry/pkg/land"
	"landRegistry/pkg/upload"
)

var (
	ErrDocumentsPending = errors.New("both documents must finish uploading before submit")
	ErrSubmitInFlight   = errors.New("a submission is already in progress")
)

// recordTimeout bounds writing a submission outcome to the journal.
const recordTimeout = 5 * time.Second

// KeyStore holds the signing credential.
type KeyStore interface {
	SaveKey(k *credential.Key) error
	LoadKey() (*credential.Key, error)
}

// Journal guards against registering the same record twice.
type Journal interface {
	Begin(ctx context.Context, rec land.Record) (string, error)
	Complete(ctx context.Context, id, txHash string) error
	Fail(ctx context.Context, id string, cause error) error
}

// FormDeps are the collaborators of a RegistrationForm. Journal may be nil.
type FormDeps struct {
	Uploader  *upload.Uploader
	Client    contract.Client
	Keys      KeyStore
	Journal   Journal
	Navigator Navigator
	// GasLimit and GasPrice override the contract defaults when set.
	GasLimit uint64
	GasPrice *big.Int
}

// RegistrationForm is the land registration form.
type RegistrationForm struct {
	Document *upload.Slot
	Image    *upload.Slot

	client  contract.Client
	keys    KeyStore
	journal Journal
	nav     Navigator
	gas     contract.Auth

	mu         sync.Mutex
	fields     land.Fields
	submitting bool
}

// NewRegistrationForm returns an empty form.
func NewRegistrationForm(deps FormDeps) *RegistrationForm {
	nav := deps.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &RegistrationForm{
		Document: upload.NewSlot("Document", deps.Uploader),
		Image:    upload.NewSlot("Image", deps.Uploader),
		client:   deps.Client,
		keys:     deps.Keys,
		journal:  deps.Journal,
		nav:      nav,
		gas:      contract.Auth{GasLimit: deps.GasLimit, GasPrice: deps.GasPrice},
	}
}

// Set assigns one of the six fields.
func (f *RegistrationForm) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.Set(field, value)
}

// Fields returns a copy of the current field values.
func (f *RegistrationForm) Fields() land.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Errors returns the current validation errors, or nil.
func (f *RegistrationForm) Errors() land.ValidationErrors {
	var verrs land.ValidationErrors
	if errors.As(f.Fields().Validate(), &verrs) {
		return verrs
	}
	return nil
}

// CanSubmit reports whether the submit action is enabled.
func (f *RegistrationForm) CanSubmit() bool {
	return f.Fields().Valid()
}

// Submitting reports whether a submission is in flight.
func (f *RegistrationForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Submit sends one addLand transaction for the form. On success it navigates
// to the user dashboard. On failure it logs, stays on the page and returns
// the error.
func (f *RegistrationForm) Submit(ctx context.Context) (*contract.Receipt, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	fields := f.fields
	if err := fields.Validate(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	docHash, imgHash := f.Document.Hash(), f.Image.Hash()
	if docHash == "" || imgHash == "" {
		f.mu.Unlock()
		return nil, ErrDocumentsPending
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	rec := land.NewRecord(fields, docHash, imgHash)
	log := logrus.WithFields(logrus.Fields{
		"pid":    rec.OwnerIdentifier,
		"survey": rec.SurveyNumber,
	})

	key, err := f.keys.LoadKey()
	if err != nil {
		log.WithError(err).Error("Failed to load credential")
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	var submissionID string
	if f.journal != nil {
		submissionID, err = f.journal.Begin(ctx, rec)
		if err != nil {
			log.WithError(err).Error("Submission rejected")
			return nil, err
		}
	}

	auth := contract.NewAuth(key.Private, key.Address)
	if f.gas.GasLimit > 0 {
		auth.GasLimit = f.gas.GasLimit
	}
	if f.gas.GasPrice != nil && f.gas.GasPrice.Sign() > 0 {
		auth.GasPrice = new(big.Int).Set(f.gas.GasPrice)
	}

	receipt, err := f.client.AddLand(ctx, auth, rec)
	if err != nil {
		log.WithError(err).Error("addLand failed")
		if f.journal != nil {
			rctx, cancel := recordContext(ctx)
			if jerr := f.journal.Fail(rctx, submissionID, err); jerr != nil {
				log.WithError(jerr).Warn("Failed to record failed submission")
			}
			cancel()
		}
		return nil, err
	}

	if f.journal != nil {
		rctx, cancel := recordContext(ctx)
		if jerr := f.journal.Complete(rctx, submissionID, receipt.TxHash); jerr != nil {
			log.WithError(jerr).Warn("Failed to record confirmed submission")
		}
		cancel()
	}
	log.WithFields(logrus.Fields{
		"tx":    receipt.TxHash,
		"block": receipt.BlockNumber,
		"from":  receipt.From,
	}).Info("Land registered")

	f.nav.Navigate(RouteUserDashboard)
	return receipt, nil
}

// recordContext outlives the cancellation of ctx so the outcome of a sent
// transaction is still written when the caller gave up waiting.
func recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// Reset clears all fields and both slots.
func (f *RegistrationForm) Reset() {
	f.mu.Lock()
	f.fields = land.Fields{}
	f.mu.Unlock()
	f.Document.Clear()
	f.Image.Clear()
}
