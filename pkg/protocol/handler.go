package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/party"
	"github.com/rs/zerolog"
)

// StartFunc is function that creates the first round of a protocol.
// It returns the first round initialized with the session information.
// If the creation fails (likely due to misconfiguration), and error is returned.
//
// An optional sessionID can be provided, which should be unique among all protocol executions.
type StartFunc func(sessionID []byte) (round.Session, error)

// HandlerOption configures a MultiHandler.
type HandlerOption func(h *MultiHandler)

// WithLogger sets the logger of the handler. By default, nothing is logged.
func WithLogger(log zerolog.Logger) HandlerOption {
	return func(h *MultiHandler) { h.Log = log }
}

// MultiHandler represents an execution of a given protocol.
// It provides a simple interface for the user to receive/deliver protocol messages.
//
// A round is only finalized once a message from every other party has been stored for it,
// so that no party ever acts on a partially delivered round.
type MultiHandler struct {
	currentRound round.Session
	err          *Error
	result       interface{}
	// messages holds every message received, indexed by round and sender.
	// Messages for the current round are processed on arrival, those for later rounds when
	// the round is reached.
	messages map[round.Number]map[party.ID]*Message
	out      chan *Message
	done     bool
	mtx      sync.Mutex

	Log zerolog.Logger
}

// NewMultiHandler expects a StartFunc for the desired protocol. It returns a handler that the user can interact with.
func NewMultiHandler(create StartFunc, sessionID []byte, opts ...HandlerOption) (*MultiHandler, error) {
	r, err := create(sessionID)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to create round: %w", err)
	}
	h := &MultiHandler{
		currentRound: r,
		messages:     make(map[round.Number]map[party.ID]*Message, r.FinalRoundNumber()+1),
		out:          make(chan *Message, int(r.FinalRoundNumber())*r.N()),
		Log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.Log = h.Log.With().
		Str("protocol", r.ProtocolID()).
		Stringer("party", r.SelfID()).
		Logger()
	h.Log.Info().Int("parties", r.N()).Msg("start")

	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.finalize()
	return h, nil
}

// Result returns the protocol result if the protocol completed successfully. Otherwise an error is returned.
func (h *MultiHandler) Result() (interface{}, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.result != nil {
		return h.result, nil
	}
	if h.err != nil {
		return nil, *h.err
	}
	return nil, errors.New("protocol: not finished")
}

// Listen returns a channel with outgoing messages that must be broadcast to other parties.
// The channel is closed when either the protocol finishes or an error occurs.
func (h *MultiHandler) Listen() <-chan *Message {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.out
}

// CanAccept returns true if the message is designated for this protocol protocol execution.
func (h *MultiHandler) CanAccept(msg *Message) bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.validate(msg) == nil
}

// Accept tries to process the given message. If an abort occurs, the channel returned by Listen() is closed,
// and an error is returned by Result().
//
// This function may be called concurrently from different threads but may block until all previous calls have finished.
func (h *MultiHandler) Accept(msg *Message) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.done || msg == nil {
		return
	}

	if err := h.validate(msg); err != nil {
		if h.mismatched(msg, err) {
			// a party of this execution runs with different session parameters
			h.abort(fmt.Errorf("%w: party %s uses SSID %x", err, msg.From, msg.SSID), msg.From)
			return
		}
		h.Log.Warn().Err(err).Stringer("msg", msg).Msg("rejected message")
		return
	}

	if h.messages[msg.RoundNumber] == nil {
		h.messages[msg.RoundNumber] = make(map[party.ID]*Message, h.currentRound.N())
	}
	h.messages[msg.RoundNumber][msg.From] = msg

	if msg.RoundNumber != h.currentRound.Number() {
		h.Log.Debug().Stringer("from", msg.From).Uint16("round", uint16(msg.RoundNumber)).Msg("storing message for later round")
		return
	}

	if err := h.process(msg); err != nil {
		h.abort(err, msg.From)
		return
	}
	h.finalize()
}

// Missing returns the parties from which no message was received for the current round.
func (h *MultiHandler) Missing() party.IDSlice {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.missing()
}

// Abort stops the execution, blaming all parties whose message for the current round is still missing.
// This is intended for timeouts and cancellation. It does nothing if the protocol already finished.
func (h *MultiHandler) Abort(err error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.done {
		return
	}
	h.abort(err, h.missing()...)
}

func (h *MultiHandler) validate(msg *Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if !bytes.Equal(msg.SSID, h.currentRound.SSID()) {
		return ErrWrongSSID
	}
	if msg.Protocol != h.currentRound.ProtocolID() {
		return ErrWrongProtocolID
	}
	if !h.currentRound.OtherPartyIDs().Contains(msg.From) {
		return ErrUnknownSender
	}
	if msg.RoundNumber == 0 || msg.RoundNumber > h.currentRound.FinalRoundNumber() {
		return ErrInvalidRoundNumber
	}
	if msg.RoundNumber == 1 {
		return ErrFirstRound
	}
	if msg.RoundNumber < h.currentRound.Number() {
		return ErrDuplicate
	}
	if _, ok := h.messages[msg.RoundNumber][msg.From]; ok {
		return ErrDuplicate
	}
	return nil
}

// mismatched returns true if msg was rejected only because its sender, one of our parties,
// computed a different SSID for the same protocol.
func (h *MultiHandler) mismatched(msg *Message, err error) bool {
	return errors.Is(err, ErrWrongSSID) &&
		msg.Protocol == h.currentRound.ProtocolID() &&
		h.currentRound.OtherPartyIDs().Contains(msg.From)
}

// process decodes the message for the current round, verifies and stores it.
func (h *MultiHandler) process(msg *Message) error {
	content := h.currentRound.MessageContent()
	if content == nil {
		return ErrFirstRound
	}
	if err := cbor.Unmarshal(msg.Data, content); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	roundMsg := round.Message{
		From:    msg.From,
		Content: content,
	}
	if err := h.currentRound.VerifyMessage(roundMsg); err != nil {
		return err
	}
	return h.currentRound.StoreMessage(roundMsg)
}

// finalize advances through as many rounds as the received messages allow.
func (h *MultiHandler) finalize() {
	for !h.done && h.receivedAll() {
		out := make(chan *round.Message, h.currentRound.N()+1)
		r, err := h.currentRound.Finalize(out)
		close(out)
		if err != nil || r == nil {
			if err == nil {
				err = errors.New("round finalized without a next round")
			}
			h.abort(err)
			return
		}

		for roundMsg := range out {
			data, err := cbor.Marshal(roundMsg.Content)
			if err != nil {
				h.abort(fmt.Errorf("failed to marshal round message: %w", err))
				return
			}
			msg := &Message{
				SSID:        r.SSID(),
				From:        r.SelfID(),
				Protocol:    r.ProtocolID(),
				RoundNumber: roundMsg.Content.RoundNumber(),
				Data:        data,
			}
			h.Log.Debug().Stringer("msg", msg).Msg("sending message")
			h.out <- msg
		}

		switch R := r.(type) {
		case *round.Output:
			h.result = R.Result
			h.Log.Info().Msg("done")
			h.stop()
			return
		case *round.Abort:
			h.abort(R.Err, R.Culprits...)
			return
		}

		h.currentRound = r
		h.Log.Info().Uint16("round", uint16(r.Number())).Msg("round advanced")

		for _, msg := range h.messages[r.Number()] {
			if err := h.process(msg); err != nil {
				h.abort(err, msg.From)
				return
			}
		}
	}
}

// receivedAll returns true if a message from every other party has been stored for the current round.
// The first round does not expect any message.
func (h *MultiHandler) receivedAll() bool {
	if h.currentRound.MessageContent() == nil {
		return true
	}
	return len(h.missing()) == 0
}

func (h *MultiHandler) missing() party.IDSlice {
	if h.currentRound.MessageContent() == nil {
		return nil
	}
	var missing party.IDSlice
	received := h.messages[h.currentRound.Number()]
	for _, id := range h.currentRound.OtherPartyIDs() {
		if _, ok := received[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// abort records the first error that occurred, together with the parties responsible, and stops the handler.
func (h *MultiHandler) abort(err error, culprits ...party.ID) {
	if h.err == nil {
		h.err = &Error{
			RoundNumber: h.currentRound.Number(),
			Culprits:    culprits,
			Err:         err,
		}
		h.Log.Error().Err(err).Interface("culprits", culprits).Uint16("round", uint16(h.currentRound.Number())).Msg("abort")
	}
	h.stop()
}

func (h *MultiHandler) stop() {
	if !h.done {
		h.done = true
		close(h.out)
	}
}
