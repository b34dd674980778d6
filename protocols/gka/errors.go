package gka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/protocol"
)

var (
	// ErrIntegrity is returned when the revealed values are inconsistent.
	// It is never worth retrying the same run.
	ErrIntegrity = errors.New("gka: integrity failure")
	// ErrMalformedInput is returned for inputs that do not have the expected shape.
	ErrMalformedInput = errors.New("gka: malformed input")
	// ErrMissingParticipant is returned when a party's broadcast did not arrive in time.
	ErrMissingParticipant = errors.New("gka: missing participant")

	ErrRingClosure        = fmt.Errorf("%w: xor keys do not cancel around the ring", ErrIntegrity)
	ErrCommitmentMismatch = fmt.Errorf("%w: revealed values do not open the commitment", ErrIntegrity)
)

// VerificationError reports the outcome of both checks run on the revealed values.
type VerificationError struct {
	RingClosed       bool
	CommitmentsValid bool
	// Mismatched holds the parties whose reveal does not open their commitment.
	Mismatched party.IDSlice
}

// Error implements error.
func (e *VerificationError) Error() string {
	var failed []string
	if !e.RingClosed {
		failed = append(failed, ErrRingClosure.Error())
	}
	if !e.CommitmentsValid {
		failed = append(failed, fmt.Sprintf("%s (parties %v)", ErrCommitmentMismatch, e.Mismatched))
	}
	return strings.Join(failed, "; ")
}

// Is makes errors.Is match ErrIntegrity, and ErrRingClosure or ErrCommitmentMismatch for the check that failed.
func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrIntegrity:
		return true
	case ErrRingClosure:
		return !e.RingClosed
	case ErrCommitmentMismatch:
		return !e.CommitmentsValid
	}
	return false
}

// ReasonKind names the cause of a failed run.
type ReasonKind string

const (
	ReasonRingClosure        ReasonKind = "ring_closure_failed"
	ReasonCommitmentMismatch ReasonKind = "commitment_mismatch"
	ReasonMissingParticipant ReasonKind = "missing_participant"
	ReasonTimeout            ReasonKind = "timeout"
	ReasonMalformedInput     ReasonKind = "malformed_input"
	// ReasonInternal covers local failures, such as a randomness source that cannot be read.
	ReasonInternal ReasonKind = "internal"
)

// Reason is the structured cause of a failed run, with the parties it names, if any.
type Reason struct {
	Kind         ReasonKind
	Participants party.IDSlice
}

// String returns the kind followed by the named parties, e.g. commitment_mismatch(2).
func (r Reason) String() string {
	if len(r.Participants) == 0 {
		return string(r.Kind)
	}
	ids := make([]string, len(r.Participants))
	for i, id := range r.Participants {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s(%s)", r.Kind, strings.Join(ids, ","))
}

// Classify maps the error of a failed run to a Reason.
// Commitment mismatches take precedence over a ring closure failure, since they name a culprit.
func Classify(err error) Reason {
	var culprits party.IDSlice
	var protocolErr protocol.Error
	if errors.As(err, &protocolErr) && len(protocolErr.Culprits) > 0 {
		culprits = party.NewIDSlice(protocolErr.Culprits)
	}

	var verificationErr *VerificationError
	if errors.As(err, &verificationErr) {
		if !verificationErr.CommitmentsValid {
			return Reason{Kind: ReasonCommitmentMismatch, Participants: party.NewIDSlice(verificationErr.Mismatched)}
		}
		return Reason{Kind: ReasonRingClosure}
	}

	var messageErr protocol.MessageError
	switch {
	case errors.Is(err, ErrCommitmentMismatch):
		return Reason{Kind: ReasonCommitmentMismatch, Participants: culprits}
	case errors.Is(err, ErrRingClosure):
		return Reason{Kind: ReasonRingClosure}
	case errors.Is(err, ErrMissingParticipant),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		if len(culprits) == 0 {
			return Reason{Kind: ReasonTimeout}
		}
		return Reason{Kind: ReasonMissingParticipant, Participants: culprits}
	case errors.Is(err, ErrMalformedInput), errors.As(err, &messageErr):
		return Reason{Kind: ReasonMalformedInput, Participants: culprits}
	}
	return Reason{Kind: ReasonInternal, Participants: culprits}
}
